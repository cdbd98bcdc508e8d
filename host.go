package after

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
)

// Host is a ready-made implementation of the host capability contract for
// programs serving plain net/http. It tracks every unit of background work
// handed to it, so a graceful shutdown can wait for deferred tasks still in
// flight.
type Host struct {
	group       sync.WaitGroup
	logger      *slog.Logger
	cache       CacheScope
	flags       map[string]bool
	assetPrefix string
	manifest    map[string]string
}

// Creates a new host.
func NewHost() *Host {
	return &Host{logger: slog.Default()}
}

// Sets the logger handed to each per-request context.
func (h *Host) Logger(logger *slog.Logger) *Host {
	if logger == nil {
		panic(errors.New("Invalid nil logger passed to Host.Logger"))
	}
	h.logger = logger
	return h
}

// Sets an optional ambient cache scope shared by every request.
func (h *Host) CacheScope(scope CacheScope) *Host {
	h.cache = scope
	return h
}

// Sets the feature and draft flags exposed on each request scope.
func (h *Host) Flags(flags map[string]bool) *Host {
	h.flags = flags
	return h
}

// Sets the asset prefix exposed on each request scope.
func (h *Host) AssetPrefix(prefix string) *Host {
	h.assetPrefix = prefix
	return h
}

// Sets the component-loading manifest exposed on each request scope.
func (h *Host) Manifest(manifest map[string]string) *Host {
	h.manifest = manifest
	return h
}

// BackgroundExecute registers work as outstanding, deferring Shutdown until
// it settles.
func (h *Host) BackgroundExecute(work *Future) {
	h.group.Add(1)
	go func() {
		<-work.Done()
		h.group.Done()
	}()
}

// Shutdown blocks until every registered unit of background work has
// settled, or until ctx expires. Serve no further requests once Shutdown
// has been called.
func (h *Host) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type scopeKey struct{}

// RequestScope returns the scope Middleware bound to r, or nil if r did not
// pass through Middleware.
func RequestScope(r *http.Request) *Scope {
	s, _ := r.Context().Value(scopeKey{}).(*Scope)
	return s
}

// Middleware wraps next so that every request runs under its own deferred
// task context. The request scope is reachable through RequestScope; work
// it schedules drains once next has returned and the response has been
// flushed.
func (h *Host) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Close callbacks registered by Schedule run on the request
		// goroutine, so no lock guards this slice.
		var closers []func()

		c := New(Bindings{
			BackgroundExecute: h.BackgroundExecute,
			OnTransportClose: func(fn func()) {
				closers = append(closers, fn)
			},
			CacheScope: h.cache,
		}).Logger(h.logger)

		scope := &Scope{
			Header:       r.Header,
			Cookies:      r.Cookies(),
			CookieWriter: responseCookies{w},
			Flags:        h.flags,
			AssetPrefix:  h.assetPrefix,
			Manifest:     h.manifest,
		}

		err := c.Run(scope, func() error {
			r = r.WithContext(context.WithValue(r.Context(), scopeKey{}, scope))
			next.ServeHTTP(w, r)
			return nil
		})
		if err != nil {
			h.logger.Error("request handler failed under deferred task context", "error", err)
		}

		// The handler has returned; flush whatever remains and fire the
		// one-shot transport-close signal.
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		for _, fn := range closers {
			fn()
		}
	})
}

// responseCookies is the live cookie write channel of an in-flight
// response.
type responseCookies struct {
	w http.ResponseWriter
}

func (rc responseCookies) SetCookie(cookie *http.Cookie) {
	http.SetCookie(rc.w, cookie)
}
