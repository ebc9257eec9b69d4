// Package server exposes the REST and websocket surfaces over a shared
// transcription engine. The engine handle itself is single-owner, so REST
// handlers borrow it serially under a mutex while websocket sessions build
// their own.
package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/config"
	"github.com/obiente/whisperbridge/internal/telemetry"
	"github.com/obiente/whisperbridge/internal/whisper"
	"github.com/obiente/whisperbridge/internal/ws"
)

// Server owns the HTTP router and the lazily created shared engine.
type Server struct {
	cfg       *config.Config
	modelPath string
	recorder  *telemetry.Recorder
	ws        *ws.Server
	router    *gin.Engine

	mu     sync.Mutex
	engine whisper.Engine
}

// New builds the server around a resolved model path. The model is not
// loaded until the first request needs it.
func New(cfg *config.Config, modelPath string) *Server {
	s := &Server{
		cfg:       cfg,
		modelPath: modelPath,
		recorder:  &telemetry.Recorder{},
	}
	s.ws = ws.NewServer(cfg, s.newSessionEngine, s.recorder)
	s.setupRouter()
	return s
}

// newSessionEngine hands each websocket session its own engine instance.
func (s *Server) newSessionEngine() (whisper.Engine, error) {
	return whisper.NewEngine(s.modelPath)
}

// sharedEngine returns the REST-side engine, loading the model on first use.
// Callers must hold s.mu.
func (s *Server) sharedEngine() (whisper.Engine, error) {
	if s.engine == nil {
		eng, err := whisper.NewEngine(s.modelPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("model", s.modelPath).Msg("server: engine ready")
		s.engine = eng
	}
	return s.engine, nil
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestID(), AccessLog(), gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/ws/transcribe", func(c *gin.Context) {
		s.ws.Handle(c.Writer, c.Request)
	})

	api := r.Group("/api/v1")
	{
		api.POST("/transcribe", s.handleTranscribe)
		api.GET("/system-info", s.handleSystemInfo)
		api.POST("/bench/:kind", s.handleBench)
	}
	s.router = r
}

// Handler exposes the router for an http.Server or a test harness.
func (s *Server) Handler() http.Handler { return s.router }

// Telemetry exposes the shared recorder.
func (s *Server) Telemetry() *telemetry.Recorder { return s.recorder }

// Close releases the shared engine if it was ever created.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}
