package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"media-compressor-go/internal/config"
	"media-compressor-go/internal/logger"
	"media-compressor-go/internal/media"
	"media-compressor-go/internal/pipeline"
	"media-compressor-go/internal/source"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

//go:embed templates/index.html
var indexHTML []byte

const defaultWSWriteTimeout = 10 * time.Second

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	controller *pipeline.Controller
	describer  *source.Describer
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// Broadcasts run inside the controller's publish path, so a client that
	// stops reading is dropped once a write exceeds this.
	wsWriteTimeout time.Duration

	// Runs started over HTTP outlive the request that triggered them.
	baseCtx    context.Context
	cancelRuns context.CancelFunc
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type SelectRequest struct {
	Path string `json:"path"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer builds the HTTP API around controller and subscribes to its
// transitions for WebSocket push.
func NewServer(cfg *config.Config, log *logrus.Logger, controller *pipeline.Controller, describer *source.Describer) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		log:        log,
		controller: controller,
		describer:  describer,
		router:     mux.NewRouter(),
		wsClients:  make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool, any origin
			},
		},
		wsWriteTimeout: defaultWSWriteTimeout,
		baseCtx:        ctx,
		cancelRuns:     cancel,
	}

	s.setupRoutes()
	controller.Subscribe(func(state pipeline.DisplayState) {
		s.broadcastWSMessage("state", state)
	})
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/select", s.handleSelect).Methods("POST")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")
	api.HandleFunc("/preview/original", s.handlePreviewOriginal).Methods("GET")
	api.HandleFunc("/preview/compressed", s.handlePreviewCompressed).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop cancels in-flight runs and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancelRuns()

	s.wsMutex.Lock()
	for conn := range s.wsClients {
		conn.Close()
		delete(s.wsClients, conn)
	}
	s.wsMutex.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    s.controller.State(),
	})
}

// handleSelect starts a run for the given path and returns immediately.
// Progress is observable through /api/state and /ws.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	path := strings.TrimSpace(req.Path)
	if path == "" {
		s.writeError(w, "Path is required", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(media.PathFromURI(path)); err != nil {
		s.writeError(w, fmt.Sprintf("Cannot read file: %v", err), http.StatusBadRequest)
		return
	}

	go s.runSelection(path)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Selection started",
	})
}

func (s *Server) runSelection(path string) {
	src := source.NewPathSource(path, s.describer)
	_, err := s.controller.StartSelectionFrom(s.baseCtx, src)

	log := logger.WithURI(s.log, path)
	var cerr *pipeline.CompressionError
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrSuperseded):
		log.Debug("Selection superseded by a newer one")
	case errors.Is(err, media.ErrSelectionCancelled), errors.Is(err, pipeline.ErrSelectionEmpty):
		log.Info("Nothing to compress")
	case errors.As(err, &cerr):
		log.WithError(err).WithField("kind", cerr.Kind).Warn("Compression failed")
	default:
		log.WithError(err).Warn("Selection failed")
	}
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	stats := s.controller.Statistics()
	data := map[string]interface{}{
		"summary":  stats.GetSummary(),
		"counters": stats.Snapshot(),
	}
	if cache, ok := s.describer.CacheStats(); ok {
		data["metadata_cache"] = map[string]interface{}{
			"hits":     cache.Hits,
			"misses":   cache.Misses,
			"hit_rate": cache.HitRate,
		}
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (s *Server) handlePreviewOriginal(w http.ResponseWriter, r *http.Request) {
	state := s.controller.State()
	if state.Media == nil {
		s.writeError(w, "No media selected", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, media.PathFromURI(state.Media.URI))
}

func (s *Server) handlePreviewCompressed(w http.ResponseWriter, r *http.Request) {
	state := s.controller.State()
	if !state.ShowCompressedPreview() {
		s.writeError(w, "No compressed image to preview", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, media.PathFromURI(*state.CompressedURI))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	err = s.writeWSMessage(conn, "state", s.controller.State())
	s.wsMutex.Unlock()
	if err != nil {
		s.log.Errorf("Failed to send initial state: %v", err)
	}

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// writeWSMessage must be called with wsMutex held; gorilla connections allow
// one concurrent writer.
func (s *Server) writeWSMessage(conn *websocket.Conn, messageType string, data interface{}) error {
	msgBytes, err := json.Marshal(WSMessage{Type: messageType, Data: data})
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(s.wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msgBytes)
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := s.writeWSMessage(conn, messageType, data); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
