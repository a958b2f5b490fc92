package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	alwaysfetch "github.com/always-cache/always-fetch"
	"github.com/always-cache/always-fetch/pkg/fetcherr"
	"github.com/always-cache/always-fetch/pkg/locator"
	"github.com/always-cache/always-fetch/rfc9211"
)

func nopLogger() *zerolog.Logger {
	log := zerolog.Nop()
	return &log
}

type fakeRetriever map[string]func() (alwaysfetch.Result, error)

func (f fakeRetriever) Fetch(ctx context.Context, raw string) (alwaysfetch.Result, error) {
	if fn, ok := f[raw]; ok {
		return fn()
	}
	return alwaysfetch.Result{}, fetcherr.New(fetcherr.InvalidScheme, "unknown %s", raw)
}

func failing(kind fetcherr.Kind) func() (alwaysfetch.Result, error) {
	return func() (alwaysfetch.Result, error) {
		return alwaysfetch.Result{}, fetcherr.New(kind, "failed")
	}
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestRetrieve(t *testing.T) {
	status := rfc9211.New("")
	status.Forward(rfc9211.CacheStatusFwdUriMiss)
	status.Stored(90 * time.Second)

	h := New(fakeRetriever{
		"http://example.com/": func() (alwaysfetch.Result, error) {
			return alwaysfetch.Result{
				Content:     "<p>hello</p>",
				FinalURL:    locator.MustParse("http://example.com/home"),
				CacheStatus: status,
			}, nil
		},
	}, nil)

	rec := get(h, "/retrieve?url="+url.QueryEscape("http://example.com/"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code is %d", rec.Code)
	}
	if body := rec.Body.String(); body != "<p>hello</p>" {
		t.Fatalf("body is %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("Content-Type is %s", ct)
	}
	if cs := rec.Header().Get("Cache-Status"); cs != "AlwaysFetch; fwd=uri-miss; stored; ttl=90" {
		t.Fatalf("Cache-Status is %s", cs)
	}
	if cl := rec.Header().Get("Content-Location"); cl != "http://example.com/home" {
		t.Fatalf("Content-Location is %s", cl)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		kind   fetcherr.Kind
		status int
	}{
		{fetcherr.InvalidScheme, http.StatusBadRequest},
		{fetcherr.FileReadError, http.StatusNotFound},
		{fetcherr.TooManyRedirects, http.StatusLoopDetected},
		{fetcherr.Timeout, http.StatusGatewayTimeout},
		{fetcherr.ConnectionFailure, http.StatusBadGateway},
		{fetcherr.ProtocolError, http.StatusBadGateway},
		{fetcherr.DecodeError, http.StatusBadGateway},
	}
	retriever := fakeRetriever{}
	for _, tt := range tests {
		retriever["test:"+string(tt.kind)] = failing(tt.kind)
	}
	h := New(retriever, nil)

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			rec := get(h, "/retrieve?url="+url.QueryEscape("test:"+string(tt.kind)))
			if rec.Code != tt.status {
				t.Fatalf("Status code is %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get(HeaderFetchError); got != string(tt.kind) {
				t.Fatalf("%s is %q", HeaderFetchError, got)
			}
		})
	}
}

func TestUntypedError(t *testing.T) {
	h := New(fakeRetriever{
		"x": func() (alwaysfetch.Result, error) { return alwaysfetch.Result{}, errors.New("boom") },
	}, nil)
	rec := get(h, "/retrieve?url=x")
	if rec.Code != http.StatusBadGateway || rec.Header().Get(HeaderFetchError) != "" {
		t.Fatalf("Status code %d, %s %q", rec.Code, HeaderFetchError, rec.Header().Get(HeaderFetchError))
	}
}

func TestMissingURL(t *testing.T) {
	rec := get(New(fakeRetriever{}, nil), "/retrieve")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status code is %d", rec.Code)
	}
}

func TestRoutes(t *testing.T) {
	h := New(fakeRetriever{}, nil)
	if rec := get(h, "/healthz"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(h, "/elsewhere"); rec.Code != http.StatusNotFound {
		t.Fatalf("Status code is %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/retrieve?url=x", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status code is %d", rec.Code)
	}
}

func TestEndToEnd(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=30")
		w.Write([]byte("from origin"))
	}))
	defer origin.Close()

	client := alwaysfetch.New(alwaysfetch.Config{Logger: nopLogger()})
	defer client.Close()
	gw := httptest.NewServer(New(client, nil))
	defer gw.Close()

	for i, want := range []string{"AlwaysFetch; fwd=uri-miss; stored; ttl=30", "AlwaysFetch; hit"} {
		resp, err := http.Get(gw.URL + "/retrieve?url=" + url.QueryEscape(origin.URL+"/page"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status code is %d", i, resp.StatusCode)
		}
		if cs := resp.Header.Get("Cache-Status"); cs != want {
			t.Fatalf("request %d: Cache-Status is %s", i, cs)
		}
	}
}
