// Copyright 2026 The Spv Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rest implements the supervisor's HTTP/JSON control surface: a
// small, unauthenticated API bound to loopback that the CLI (and any
// local UI) drives the Manager through.
//
// Routes live under /servers/..., and every response is served with
// Connection: close — the API is meant for occasional local requests,
// not sustained keep-alive traffic.
package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	spv "github.com/localdev/spv"
)

// maxHeaderBytes caps the request line and headers at 64 KiB; the
// control API never needs more.
const maxHeaderBytes = 64 * 1024

// Server is the Control API's HTTP listener.
type Server struct {
	httpServer *http.Server
	mgr        *spv.Manager
	logger     *zap.SugaredLogger
}

// New builds a Server bound to addr (normally 127.0.0.1:<port>). It does
// not start listening until Serve is called.
func New(addr string, mgr *spv.Manager, logger *zap.SugaredLogger) *Server {
	s := &Server{mgr: mgr, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/servers", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/servers/start-all", s.handleStartAll).Methods(http.MethodPost)
	r.HandleFunc("/servers/stop-all", s.handleStopAll).Methods(http.MethodPost)
	r.HandleFunc("/servers/reload-settings", s.handleReload).Methods(http.MethodPost)
	r.HandleFunc("/servers/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/servers/{id}/logs", s.handleLogs).Methods(http.MethodGet)
	r.HandleFunc("/servers/{id}/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/servers/{id}/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/servers/{id}/restart", s.handleRestart).Methods(http.MethodPost)
	r.HandleFunc("/servers/{id}/clear-logs", s.handleClearLogs).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such route: "+r.URL.Path)
	})

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        closeConnMiddleware(r),
		MaxHeaderBytes: maxHeaderBytes,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
	s.httpServer.SetKeepAlivesEnabled(false)

	return s
}

// closeConnMiddleware stamps every response with CORS headers for a
// local UI on another port, and an explicit Connection: close to match
// SetKeepAlivesEnabled(false).
func closeConnMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Connection", "close")
		next.ServeHTTP(w, r)
	})
}

// Serve blocks, listening until the underlying listener is closed by
// Close.
func (s *Server) Serve() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the listener down without waiting for in-flight requests;
// the Control API has no long-lived connections to drain since keep-alive
// is disabled.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"JSON encoding failed"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"servers": s.mgr.ListInfo()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, err := s.mgr.GetInfo(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	lines := 100
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "lines must be a non-negative integer")
			return
		}
		lines = n
	}

	logs, err := s.mgr.GetLogs(id, lines)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	texts := make([]string, len(logs))
	for i, l := range logs {
		texts[i] = l.Text
	}
	total, err := s.mgr.LogSize(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         id,
		"lines":      texts,
		"totalLines": total,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.actOn(w, r, s.mgr.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.actOn(w, r, s.mgr.Stop)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.actOn(w, r, s.mgr.Restart)
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.actOn(w, r, s.mgr.ClearLogs)
}

// actionResult is the wire shape for every mutating endpoint's response
// body: { success, message }.
type actionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) actOn(w http.ResponseWriter, r *http.Request, op func(string) error) {
	id := mux.Vars(r)["id"]
	if err := op(id); err != nil {
		if err == spv.ErrServerNotFound {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, actionResult{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, actionResult{Success: true, Message: "ok"})
}

func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, errSummary(s.mgr.StartAll()))
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, errSummary(s.mgr.StopAll()))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.ReloadSettings(); err != nil {
		writeJSON(w, http.StatusOK, actionResult{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, actionResult{Success: true, Message: "ok"})
}

// errSummary folds a batch operation's per-server errors into a single
// { success, message } result: success iff nothing failed, message
// listing the failures otherwise.
func errSummary(errs []error) actionResult {
	if len(errs) == 0 {
		return actionResult{Success: true, Message: "ok"}
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return actionResult{Success: false, Message: strings.Join(msgs, "; ")}
}
