package after

import "net/http"

// CookieWriter is the mutable cookie channel of a request scope.
type CookieWriter interface {
	SetCookie(cookie *http.Cookie)
}

// Scope is an explicit, read-only projection of a request's ambient state,
// threaded by value through the code that needs it rather than read from
// globals. The identity-bearing fields are shared with the request for its
// lifetime; the Scope merely holds them.
//
// A Scope becomes bound to a Context by Run. While deferred callbacks drain,
// they receive a restricted view instead: same identity fields, an inert
// cookie writer, and scheduling entry points which refuse nested scheduling.
type Scope struct {
	// Request headers, forwarded by reference.
	Header http.Header

	// Parsed request cookies, read access only.
	Cookies []*http.Cookie

	// The write channel for response cookies. In the restricted view this
	// is replaced by a writer bound to nothing: writes performed during
	// draining are accepted and silently discarded, since the response has
	// already been flushed.
	CookieWriter CookieWriter

	// Feature and draft flags.
	Flags map[string]bool

	// Prefix under which static assets are served.
	AssetPrefix string

	// Component-loading manifest.
	Manifest map[string]string

	sched scheduler
}

// scheduler is the scheduling surface a Scope forwards to: the Context it
// was established under, or the refusing stand-in during draining.
type scheduler interface {
	Schedule(task interface{}) error
	Run(scope *Scope, body func() error) error
}

// Schedule forwards task to the deferred task context this scope was
// established under. During draining it fails with ErrNested.
func (s *Scope) Schedule(task interface{}) error {
	if s.sched == nil {
		return newInternalError("Schedule reached through a scope never established by Run")
	}
	return s.sched.Schedule(task)
}

// Run executes body with this scope established as the active request
// scope. During draining it fails with ErrNested.
func (s *Scope) Run(body func() error) error {
	if s.sched == nil {
		return newInternalError("Run reached through a scope never established by Run")
	}
	return s.sched.Run(s, body)
}

// SetCookie writes a response cookie through the scope's cookie channel.
// Scopes without a cookie writer discard the write.
func (s *Scope) SetCookie(cookie *http.Cookie) {
	if s.CookieWriter == nil {
		return
	}
	s.CookieWriter.SetCookie(cookie)
}

// restricted returns the read-only view substituted while deferred
// callbacks run.
func (s *Scope) restricted() *Scope {
	return &Scope{
		Header:       s.Header,
		Cookies:      s.Cookies,
		CookieWriter: discardCookies{},
		Flags:        s.Flags,
		AssetPrefix:  s.AssetPrefix,
		Manifest:     s.Manifest,
		sched:        refuseNested{},
	}
}

// discardCookies accepts cookie writes and drops them. Mutations performed
// after the response has been flushed cannot reach the client.
type discardCookies struct{}

func (discardCookies) SetCookie(*http.Cookie) {}

// refuseNested rejects every scheduling entry point reached from within a
// drain pass.
type refuseNested struct{}

func (refuseNested) Schedule(interface{}) error { return ErrNested }

func (refuseNested) Run(*Scope, func() error) error { return ErrNested }
