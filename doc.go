// after lets request-handling code schedule work to execute once the primary
// response has been produced, without blocking or delaying that response. It
// classifies, queues, and drains deferred tasks in-process, one context per
// request.
//
// The host supplies two primitives at construction time: a background
// execution hook which keeps async work alive past the point where the host
// might otherwise tear the request down, and a one-shot transport-close
// signal fired once the response has been fully flushed to the client. An
// ambient cache scope may optionally be supplied as well.
//
//	ctx := after.New(after.Bindings{
//		BackgroundExecute: host.BackgroundExecute,
//		OnTransportClose:  host.OnTransportClose,
//	})
//
//	scope := &after.Scope{Header: r.Header}
//	ctx.Run(scope, func() error {
//		// ... produce the response ...
//		return scope.Schedule(func() error {
//			// Runs after the response is flushed.
//			return nil
//		})
//	})
//
// Awaitable tasks (*Future values) are handed to the host immediately.
// Callback tasks queue until the transport-close signal fires, then all run
// concurrently under a read-only view of the request scope. A failing
// callback is logged and never prevents its siblings from completing.
//
// For programs serving plain net/http, the Host type provides a ready-made
// background executor, an http.Handler middleware which wires one context
// per request, and a Shutdown method which blocks until all outstanding
// deferred work has settled.
package after
