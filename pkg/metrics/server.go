package metrics

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Mux routes /metrics and the extra routes. The root path lists them all so
// an operator can find the probes without reading the config.
func Mux(extra map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	paths := []string{"/metrics"}
	mux.Handle("GET /metrics", Handler())
	for pattern, h := range extra {
		mux.Handle(pattern, h)
		if _, path, ok := strings.Cut(pattern, " "); ok {
			pattern = path
		}
		paths = append(paths, pattern)
	}
	slices.Sort(paths)

	var index strings.Builder
	index.WriteString("<html><body><h1>span index</h1><ul>")
	for _, p := range paths {
		p = html.EscapeString(p)
		fmt.Fprintf(&index, `<li><a href="%s">%s</a></li>`, p, p)
	}
	index.WriteString("</ul></body></html>")
	page := index.String()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})
	return mux
}

// StartServer serves Mux(extra) on port in the background. The returned
// function stops it.
func StartServer(port int, extra map[string]http.Handler) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           Mux(extra),
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	log := slog.Default().With("component", "metrics_server")

	go func() {
		log.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("serve failed", "error", err)
		}
	}()
	return server.Shutdown
}
