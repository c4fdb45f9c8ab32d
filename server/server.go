// Package server exposes the revision workflow over HTTP.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/crypto/bcrypt"

	"summary_review_workflow/config"
	"summary_review_workflow/generator"
	"summary_review_workflow/publisher"
	"summary_review_workflow/workflow"
)

// Options wires optional collaborators into a Server.
type Options struct {
	// LLM backs the connection test endpoint.
	LLM      generator.LLMClient
	Provider string
	Model    string
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// Credentials maps username to plaintext password; empty disables auth.
	Credentials map[string]string
	// Publisher receives every completed run when set.
	Publisher *publisher.Publisher
	// RunTTL is how long a finished run stays queryable; MaxRuns caps the stored runs.
	// Zero values pick 30 minutes and 256.
	RunTTL  time.Duration
	MaxRuns int
	Logger  *log.Logger
	Verbose bool
}

type Server struct {
	engine    *workflow.Engine
	llm       generator.LLMClient
	provider  string
	model     string
	metrics   http.Handler
	hashes    map[string][]byte
	publisher *publisher.Publisher
	logger    *log.Logger
	verbose   bool
	store     *runStore

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func New(engine *workflow.Engine, opts Options) (*Server, error) {
	if engine == nil {
		return nil, errors.New("workflow engine required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	hashes := make(map[string][]byte, len(opts.Credentials))
	for user, pass := range opts.Credentials {
		h, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashes[user] = h
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		engine:    engine,
		llm:       opts.LLM,
		provider:  opts.Provider,
		model:     opts.Model,
		metrics:   opts.Metrics,
		hashes:    hashes,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		verbose:   opts.Verbose,
		store:     newStore(opts.RunTTL, opts.MaxRuns),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/runs", s.handleRunCreate)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRunGet)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleRunCancel)
	mux.HandleFunc("GET /api/runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /api/runs/{id}/report", s.handleRunReport)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/models/test", s.handleModelTest)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	// WebSocket 升级请求不经过 otelhttp 包装，保证连接可以被劫持。
	return otelhttp.NewHandler(s.logMiddleware(s.authMiddleware(mux)), "summary-review-workflow",
		otelhttp.WithFilter(func(r *http.Request) bool { return !websocket.IsWebSocketUpgrade(r) }))
}

// Close cancels every active run and waits for them to reach END. Runs
// requested afterwards are refused.
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// track registers a run goroutine unless the server is closing.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) infof(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.logger.Printf("[INFO] "+format, args...)
}

// --- Handlers ---

type runCreateReq struct {
	Text string `json:"text"`
}

type runCreateResp struct {
	RunID string `json:"run_id"`
}

type modelsResp struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Models   []config.Model `json:"models"`
}

type modelTestResp struct {
	Reply string `json:"reply"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	var req runCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if !s.track() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	st := workflow.NewState(req.Text)
	ctx, cancel := context.WithCancel(s.ctx)
	h := newRunHandle(st, cancel)
	s.store.set(h)

	events := s.engine.StreamState(ctx, st)
	go func() {
		defer s.wg.Done()
		defer cancel()
		var final workflow.State
		for ev := range events {
			h.append(ev)
			final = ev.Snapshot
		}
		s.infof("run %s finished outcome=%s revisions=%d", final.RunID, final.Outcome, final.RevisionCount)
		s.publish(final)
	}()

	s.infof("run %s started", st.RunID)
	writeJSON(w, http.StatusAccepted, runCreateResp{RunID: st.RunID})
}

func (s *Server) publish(st workflow.State) {
	if s.publisher == nil || st.Outcome != workflow.OutcomeCompleted {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, st); err != nil {
		s.logger.Printf("[WARN] publish run %s: %v", st.RunID, err)
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*runHandle, bool) {
	h, ok := s.store.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
	}
	return h, ok
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st, _ := h.snapshot()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRunCancel(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	h.cancel()
	s.infof("run %s cancel requested", h.id)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	format, err := publisher.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, done := h.snapshot()
	if !done {
		writeError(w, http.StatusConflict, "run still in progress")
		return
	}
	out, err := publisher.Render(st, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if format == publisher.FormatHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	_, _ = w.Write([]byte(out))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleRunEvents replays every recorded event, then follows the run live until END.
// For a finished run only the END event carries a snapshot.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[WARN] websocket upgrade for run %s: %v", h.id, err)
		return
	}
	defer conn.Close()

	// 读循环只用于感知客户端断开。
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	next := 0
	for {
		evs, done, notify := h.since(next)
		for _, ev := range evs {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		next += len(evs)
		if done {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
				time.Now().Add(time.Second))
			return
		}
		select {
		case <-notify:
		case <-gone:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modelsResp{
		Provider: s.provider,
		Model:    s.model,
		Models:   config.AvailableModels,
	})
}

func (s *Server) handleModelTest(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "no model configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	reply, err := generator.TestConnection(ctx, s.llm)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, modelTestResp{Reply: reply})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// dummyHash keeps unknown-user checks as slow as known-user ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused"), bcrypt.MinCost)

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if len(s.hashes) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if ok && s.checkPassword(user, pass) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="summary-review-workflow"`)
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *Server) checkPassword(user, pass string) bool {
	hash, known := s.hashes[user]
	if !known {
		hash = dummyHash
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(pass))
	return known && err == nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		s.infof("%s %s %d %s", r.Method, path, status, time.Since(start).Round(time.Millisecond))
	})
}
