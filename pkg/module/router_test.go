package module_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/module"
)

func echoMux(body string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	})
	return mux
}

func TestRouterDispatchesByPrefix(t *testing.T) {
	router := module.NewRouter()
	router.Mount(module.New("/api", echoMux("api")))

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "api" {
		t.Errorf("body = %q, want api", rec.Body.String())
	}
}

func TestRouterNativeFallback(t *testing.T) {
	router := module.NewRouter()
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouterUnknownPath(t *testing.T) {
	router := module.NewRouter()
	router.Mount(module.New("/api", echoMux("api")))

	req := httptest.NewRequest(http.MethodGet, "/nope/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestModuleMiddlewareApplied(t *testing.T) {
	m := module.New("/api", echoMux("api"))
	m.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "applied")
			next.ServeHTTP(w, r)
		})
	})

	router := module.NewRouter()
	router.Mount(m)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Test") != "applied" {
		t.Error("middleware header missing")
	}
}

func TestNewPanicsOnInvalidPrefix(t *testing.T) {
	tests := []string{"", "api", "/api/v1"}
	for _, prefix := range tests {
		t.Run(prefix, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("New(%q) did not panic", prefix)
				}
			}()
			module.New(prefix, http.NewServeMux())
		})
	}
}
