package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"calnorm/internal/config"
	appLog "calnorm/internal/log"
	"calnorm/internal/prompt"
	"calnorm/internal/rules"
)

// RuleSource supplies the rule store shown by /api/rules.
type RuleSource interface {
	Load() (*rules.Store, error)
}

// Server is the browser front-end of the prompt flow. The engine blocks on
// the prompt.Channel while handlers expose and complete its pending request.
type Server struct {
	prompts *prompt.Channel
	rules   RuleSource
	auth    *config.BasicAuthConfig
	mux     *http.ServeMux
}

// embeddedStatic holds the prompt form served at /.
//
//go:embed static
var embeddedStatic embed.FS

// NewServer constructs a Server. rules may be nil, in which case
// /api/rules answers 404. auth may be nil to disable Basic Auth.
func NewServer(prompts *prompt.Channel, rules RuleSource, auth *config.BasicAuthConfig) *Server {
	s := &Server{
		prompts: prompts,
		rules:   rules,
		auth:    auth,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	return s.auth != nil && s.auth.Username != "" && s.auth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.auth.Username
	password := s.auth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calnorm", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves h on listen until ctx is canceled, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func StartServer(ctx context.Context, listen string, h http.Handler, ready func(addr string)) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
	if ready != nil {
		ready(ln.Addr().String())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		appLog.Info("HTTP server stopped")
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/prompt", s.handlePrompt)
	s.mux.HandleFunc("/api/rules", s.handleRules)
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// answerRequest is the POST /api/prompt body.
type answerRequest struct {
	ID     string    `json:"id"`
	Values [2]string `json:"values"`
}

// handlePrompt exposes the pending request of the prompt channel.
//
//	GET    /api/prompt       200 + request JSON, 204 when idle
//	POST   /api/prompt       {"id": ..., "values": [a, b]} answers it
//	DELETE /api/prompt?id=   abandons it
//
// Answers for a request that is no longer pending get 409.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		req, ok := s.prompts.Pending()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, req)

	case http.MethodPost:
		var body answerRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := s.prompts.Respond(body.ID, body.Values); err != nil {
			s.writePromptError(w, err)
			return
		}
		appLog.Info("prompt answered via web", "id", body.ID)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := s.prompts.Abandon(id); err != nil {
			s.writePromptError(w, err)
			return
		}
		appLog.Info("prompt abandoned via web", "id", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) writePromptError(w http.ResponseWriter, err error) {
	if errors.Is(err, prompt.ErrStale) {
		writeError(w, http.StatusConflict, "prompt is no longer pending")
		return
	}
	appLog.Error("prompt completion failed", err)
	writeError(w, http.StatusInternalServerError, "failed to complete prompt")
}

// handleRules returns the persisted rule store.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.rules == nil {
		http.NotFound(w, r)
		return
	}
	store, err := s.rules.Load()
	if err != nil {
		appLog.Error("api rules: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load rules")
		return
	}
	writeJSON(w, http.StatusOK, store)
}

// staticFileServer serves the embedded prompt form.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown /api/* paths must not fall through to HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
