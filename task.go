package after

type taskKind int

const (
	taskInvalid taskKind = iota
	taskAwaitable
	taskCallback
)

// callback is the canonical form every accepted callable is normalized to.
// The scope argument is the restricted view active during draining.
type callback func(*Scope) error

// classify decides, once, at the scheduling boundary, what kind of task was
// handed to Schedule. Awaitables pass through unchanged; each accepted
// callable shape is wrapped into the canonical callback form. A callable
// returning a *Future has that future joined, so an asynchronous rejection
// surfaces as the callback's own error.
//
// A typed nil in any accepted shape is invalid: it could only panic later,
// and rejection belongs here, at scheduling time.
func classify(task interface{}) (taskKind, *Future, callback) {
	switch v := task.(type) {
	case *Future:
		if v == nil {
			break
		}
		return taskAwaitable, v, nil
	case func():
		if v == nil {
			break
		}
		return taskCallback, nil, func(*Scope) error {
			v()
			return nil
		}
	case func() error:
		if v == nil {
			break
		}
		return taskCallback, nil, func(*Scope) error {
			return v()
		}
	case func() *Future:
		if v == nil {
			break
		}
		return taskCallback, nil, func(*Scope) error {
			return await(v())
		}
	case func(*Scope):
		if v == nil {
			break
		}
		return taskCallback, nil, func(s *Scope) error {
			v(s)
			return nil
		}
	case func(*Scope) error:
		if v == nil {
			break
		}
		return taskCallback, nil, callback(v)
	case func(*Scope) *Future:
		if v == nil {
			break
		}
		return taskCallback, nil, func(s *Scope) error {
			return await(v(s))
		}
	}
	return taskInvalid, nil, nil
}
