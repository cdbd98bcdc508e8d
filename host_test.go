package after

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHostMiddleware(t *testing.T) {
	host := NewHost().
		Flags(map[string]bool{"draft": true}).
		AssetPrefix("/assets").
		Manifest(map[string]string{"app": "app.js"})

	var deferred bool
	handler := host.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := RequestScope(r)
		assert.NotNil(t, scope)
		assert.True(t, scope.Flags["draft"])
		assert.Equal(t, "/assets", scope.AssetPrefix)
		assert.Equal(t, "app.js", scope.Manifest["app"])
		assert.Equal(t, "yes", scope.Header.Get("X-Test"))

		scope.SetCookie(&http.Cookie{Name: "live", Value: "1"})
		assert.Nil(t, scope.Schedule(func(s *Scope) {
			s.SetCookie(&http.Cookie{Name: "late", Value: "2"})
			deferred = true
		}))

		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Test", "yes")
	handler.ServeHTTP(w, r)

	// The close signal fires inside ServeHTTP, after the handler returns,
	// so the drain has completed by now.
	assert.True(t, deferred)
	assert.Equal(t, "ok", w.Body.String())

	// Only the cookie written during the handler reaches the response.
	cookies := w.Result().Cookies()
	assert.Len(t, cookies, 1)
	assert.Equal(t, "live", cookies[0].Name)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Nil(t, host.Shutdown(ctx))
}

func TestHostMiddlewarePerRequestContexts(t *testing.T) {
	host := NewHost()

	var drains int
	handler := host.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, RequestScope(r).Schedule(func() {
			drains++
		}))
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	}
	assert.Equal(t, 3, drains)
}

func TestHostShutdown(t *testing.T) {
	host := NewHost()

	fut := NewFuture()
	host.BackgroundExecute(fut)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, host.Shutdown(ctx))

	fut.Resolve()
	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Nil(t, host.Shutdown(ctx))
}

func TestHostCacheScope(t *testing.T) {
	cache := &fakeCache{}
	host := NewHost().CacheScope(cache)

	var handlerInside, drainInside bool
	handler := host.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInside = cache.inside
		assert.Nil(t, RequestScope(r).Schedule(func() {
			drainInside = cache.inside
		}))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.True(t, handlerInside)
	assert.True(t, drainInside)
	assert.Equal(t, 2, cache.runs)
}
