package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamrewrite/htmlrewriter"
)

// wsUpgrader is shared across every /__htmlrewrite/watch connection, the
// same zero-value-Upgrader pattern the teacher uses for its own
// live-reload websocket.
var wsUpgrader = websocket.Upgrader{}

// diagnostic is one line of live rewrite telemetry pushed to every
// connected watcher.
type diagnostic struct {
	Path        string `json:"path"`
	BytesIn     int    `json:"bytes_in"`
	BytesOut    int    `json:"bytes_out"`
	HandlerErr  string `json:"handler_error,omitempty"`
	MemoryLimit uint64 `json:"memory_limit"`
	Duration    string `json:"duration"`
}

// watchHub fans diagnostics out to every currently-connected
// /__htmlrewrite/watch client. broadcast writes to each client in turn
// while holding the hub's lock, so a slow client delays the rewrite
// path; a client whose write fails is removed.
type watchHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newWatchHub() *watchHub {
	return &watchHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *watchHub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *watchHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

func (h *watchHub) broadcast(d diagnostic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.WriteJSON(d); err != nil {
			go h.remove(c)
		}
	}
}

// serveConfig holds the -serve mode's runtime dependencies.
type serveConfig struct {
	addr     string
	upstream *url.URL
	settings htmlrewriter.Settings
	rules    []rule
	logger   *slog.Logger
}

// runServe starts an HTTP reverse proxy in front of cfg.upstream,
// rewriting any text/html response body through a Rewriter built from
// cfg.settings/cfg.rules, and exposes /__htmlrewrite/watch for clients
// that want to observe rewrite diagnostics live.
func runServe(cfg serveConfig) error {
	hub := newWatchHub()
	proxy := httputil.NewSingleHostReverseProxy(cfg.upstream)
	proxy.ModifyResponse = func(resp *http.Response) error {
		if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTML(ct) {
			return nil
		}
		return rewriteResponse(resp, cfg, hub)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/__htmlrewrite/watch", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.logger.Warn("upgrade watch connection", "error", err)
			return
		}
		hub.add(conn)
		defer hub.remove(conn)
		// Drain and discard reads so a client-initiated close is noticed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.Handle("/", proxy)

	cfg.logger.Info("htmlrewrite serve starting", "addr", cfg.addr, "upstream", cfg.upstream.String())
	return http.ListenAndServe(cfg.addr, mux)
}

func isHTML(contentType string) bool {
	return len(contentType) >= 9 && contentType[:9] == "text/html"
}

// rewriteResponse replaces resp.Body with the rewritten HTML and
// pushes a diagnostic line to hub once the rewrite completes.
func rewriteResponse(resp *http.Response, cfg serveConfig, hub *watchHub) error {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read upstream body: %w", err)
	}

	start := time.Now()
	settings := cfg.settings
	settings.ElementContentHandlers = handlers(cfg.rules)

	var out []byte
	rw, err := htmlrewriter.NewRewriter(settings, func(p []byte) error {
		out = append(out, p...)
		return nil
	})
	d := diagnostic{Path: resp.Request.URL.Path, BytesIn: len(body)}
	if err != nil {
		d.HandlerErr = err.Error()
		hub.broadcast(d)
		return err
	}
	writeErr := rw.Write(body)
	if writeErr == nil {
		writeErr = rw.End()
	}
	if writeErr != nil {
		d.HandlerErr = writeErr.Error()
		hub.broadcast(d)
		return writeErr
	}

	d.BytesOut = len(out)
	d.MemoryLimit = settings.Memory.MaxAllowedMemoryUsage
	d.Duration = time.Since(start).String()
	hub.broadcast(d)

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", fmt.Sprint(len(out)))
	return nil
}
