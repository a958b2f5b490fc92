// Package gateway exposes URL retrieval over HTTP.
//
//	GET /retrieve?url=<url>  the text behind url
//	GET /healthz             liveness
package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	alwaysfetch "github.com/always-cache/always-fetch"
	"github.com/always-cache/always-fetch/pkg/fetcherr"
)

// HeaderFetchError carries the error kind of a failed retrieval.
const HeaderFetchError = "X-Fetch-Error"

type Retriever interface {
	Fetch(ctx context.Context, raw string) (alwaysfetch.Result, error)
}

type gateway struct {
	retriever Retriever
	log       zerolog.Logger
}

// New returns the gateway router. A nil logger discards log output.
func New(retriever Retriever, logger *zerolog.Logger) http.Handler {
	g := &gateway{retriever: retriever, log: zerolog.Nop()}
	if logger != nil {
		g.log = logger.With().Str("component", "gateway").Logger()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/retrieve", g.retrieve)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return r
}

func (g *gateway) retrieve(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	res, err := g.retriever.Fetch(r.Context(), raw)
	if err != nil {
		status := StatusFor(err)
		g.log.Error().Err(err).Str("url", raw).Int("status", status).Msg("Retrieval failed")
		if kind := fetcherr.KindOf(err); kind != "" {
			w.Header().Set(HeaderFetchError, string(kind))
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if res.CacheStatus != nil {
		w.Header().Set("Cache-Status", res.CacheStatus.String())
	}
	if res.FinalURL != nil {
		w.Header().Set("Content-Location", res.FinalURL.String())
	}
	w.Write([]byte(res.Content))
}

// StatusFor maps a retrieval error to the gateway's response status.
func StatusFor(err error) int {
	switch fetcherr.KindOf(err) {
	case fetcherr.InvalidScheme:
		return http.StatusBadRequest
	case fetcherr.FileReadError:
		return http.StatusNotFound
	case fetcherr.TooManyRedirects:
		return http.StatusLoopDetected
	case fetcherr.Timeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
