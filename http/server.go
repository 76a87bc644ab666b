package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/siteclone"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds graceful shutdown. Open event streams end as soon
// as their sessions are cancelled.
const shutdownTimeout = 10 * time.Second

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// Server exposes clone sessions over HTTP. Progress is streamed as
// server-sent events, one JSON-encoded siteclone.Event per message.
//
//	POST /sessions              start a session (CloneRequest body)
//	GET  /sessions              list retained sessions
//	GET  /sessions/{id}         session snapshot
//	GET  /sessions/{id}/events  event stream, latest state first
//	POST /sessions/{id}/cancel  request cancellation
//	POST /detect                detect menus of {"url": ...} for review
type Server struct {
	sessions siteclone.SessionStore
	menus    siteclone.MenuService
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server. menus may be nil, which disables /detect.
func NewServer(sessions siteclone.SessionStore, menus siteclone.MenuService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		sessions: sessions,
		menus:    menus,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /sessions", s.handleStart)
	s.mux.HandleFunc("GET /sessions", s.handleList)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGet)
	s.mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)
	s.mux.HandleFunc("POST /sessions/{id}/cancel", s.handleCancel)
	s.mux.HandleFunc("POST /detect", s.handleDetect)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req siteclone.CloneRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.sessions.StartSession(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+snap.ID)
	s.writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.FindSessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.FindSessionByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.CancelSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, siteclone.Errorf(siteclone.EINTERNAL, "streaming unsupported"))
		return
	}
	events, err := s.sessions.Subscribe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			s.logger.Error("encode event", "session", e.SessionID, "err", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

type detectRequest struct {
	URL string `json:"url"`
}

type detectResponse struct {
	URL   string                `json:"url"`
	Menus []siteclone.MenuGroup `json:"menus"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if s.menus == nil {
		s.writeError(w, r, siteclone.Errorf(siteclone.ENOTFOUND, "menu detection is not enabled"))
		return
	}
	var req detectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	menus, err := s.menus.DetectMenus(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if menus == nil {
		menus = []siteclone.MenuGroup{}
	}
	s.writeJSON(w, http.StatusOK, detectResponse{URL: req.URL, Menus: menus})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return siteclone.Errorf(siteclone.EINVALID, "invalid request body: %v", err)
	}
	return nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorStatus maps application error codes to HTTP status codes.
var errorStatus = map[string]int{
	siteclone.EINVALID:    http.StatusBadRequest,
	siteclone.ENOTFOUND:   http.StatusNotFound,
	siteclone.EROOTLOAD:   http.StatusBadGateway,
	siteclone.EPAGELOAD:   http.StatusBadGateway,
	siteclone.ELOWCONTENT: http.StatusUnprocessableEntity,
	siteclone.ECANCELED:   http.StatusConflict,
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := siteclone.ErrorCode(err)
	status, ok := errorStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Code: code, Message: siteclone.ErrorMessage(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "err", err)
	}
}
