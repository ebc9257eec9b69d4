// Package ws implements the websocket streaming surface. Each connection
// carries one transcription session: the client streams audio chunks, the
// server buffers them as 16 kHz mono float32, and an explicit flush (or a
// full buffer) runs one synchronous pass over everything buffered so far.
package ws

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/audio"
	"github.com/obiente/whisperbridge/internal/config"
	"github.com/obiente/whisperbridge/internal/telemetry"
	"github.com/obiente/whisperbridge/internal/whisper"
)

const readTimeout = 60 * time.Second

// EngineFactory builds a fresh engine for one session. Sessions own their
// engine exclusively, so the factory is the only shared state between them.
type EngineFactory func() (whisper.Engine, error)

// Server upgrades HTTP requests to websocket transcription sessions.
type Server struct {
	upgrader   websocket.Upgrader
	newEngine  EngineFactory
	threads    int
	maxSamples int
	recorder   *telemetry.Recorder
}

// NewServer wires the session server against the given engine factory.
func NewServer(cfg *config.Config, factory EngineFactory, rec *telemetry.Recorder) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
		newEngine:  factory,
		threads:    cfg.Threads,
		maxSamples: cfg.MaxBufferSeconds * audio.EngineRate,
		recorder:   rec,
	}
}

// session is the per-connection state. The engine is created lazily on the
// first chunk and closed when the connection goes away, whatever the reason.
type session struct {
	srv     *Server
	conn    *websocket.Conn
	id      string
	logger  zerolog.Logger
	metrics *telemetry.SessionMetrics
	engine  whisper.Engine
	samples []float32
	seq     int
	err     error
}

// Handle upgrades the request and runs the session loop until the client
// stops, the connection drops, or the read deadline expires.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	sess := &session{
		srv:     s,
		conn:    conn,
		id:      id,
		logger:  log.With().Str("session", id).Logger(),
		metrics: s.recorder.SessionStarted(id),
	}
	defer sess.close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	sess.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("ws: session opened")
	sess.run()
}

func (sess *session) run() {
	for {
		mt, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				sess.logger.Debug().Msg("ws: connection closed")
				return
			}
			sess.err = err
			sess.logger.Warn().Err(err).Msg("ws: read error")
			return
		}
		_ = sess.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}

		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.sendError("invalid json")
			continue
		}

		switch msg["type"] {
		case "ping":
			sess.send(map[string]any{"type": "pong", "ts": msg["ts"]})
		case "start":
			sess.samples = sess.samples[:0]
			sess.seq = 0
			sess.send(map[string]any{"type": "started", "session": sess.id})
		case "chunk":
			sess.handleChunk(msg)
		case "flush":
			sess.flush(false)
		case "stop":
			sess.send(map[string]any{"type": "stopped", "session": sess.id})
			sess.logger.Debug().Msg("ws: session stopped by client")
			return
		default:
			sess.sendError("unknown message type")
		}
	}
}

func (sess *session) handleChunk(msg map[string]any) {
	b64, _ := msg["data"].(string)
	if b64 == "" {
		sess.sendError("empty chunk")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		sess.sendError("invalid base64 audio")
		return
	}
	sess.metrics.Chunk(len(raw))

	var (
		pcm []float32
		sr  int
	)
	mime, _ := msg["mime_type"].(string)
	switch mime {
	case "audio/pcm", "audio/L16", "audio/pcm16":
		pcm, sr, err = audio.DecodePCM16LEToFloat32(raw, int(asFloat(msg["sample_rate"])))
	default:
		pcm, sr, err = audio.DecodeWAVToFloat32(raw)
	}
	if err != nil {
		sess.logger.Warn().Err(err).Str("mime", mime).Msg("ws: chunk decode failed")
		sess.sendError("decode audio failed")
		return
	}
	if sr != audio.EngineRate {
		pcm = audio.ResampleLinear(pcm, sr, audio.EngineRate)
	}
	if v, ok := msg["sequence"].(float64); ok {
		sess.seq = int(v)
	}

	if sess.engine == nil {
		eng, err := sess.srv.newEngine()
		if err != nil {
			sess.err = err
			sess.logger.Error().Err(err).Msg("ws: engine init failed")
			sess.sendError("engine init failed")
			return
		}
		sess.engine = eng
	}

	sess.samples = append(sess.samples, pcm...)
	if len(sess.samples) >= sess.srv.maxSamples {
		sess.logger.Info().Int("samples", len(sess.samples)).Msg("ws: buffer full, forcing flush")
		sess.flush(true)
	}
}

type resultSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type resultMessage struct {
	Type         string          `json:"type"`
	Session      string          `json:"session"`
	Sequence     int             `json:"sequence"`
	Forced       bool            `json:"forced,omitempty"`
	Text         string          `json:"text"`
	Segments     []resultSegment `json:"segments"`
	DurationSec  float64         `json:"duration_sec"`
	LikelySilent bool            `json:"likely_silent"`
}

// flush runs one blocking pass over the buffered audio and emits a result
// frame. The buffer is cleared on success and kept on failure so the client
// may retry.
func (sess *session) flush(forced bool) {
	if sess.engine == nil || len(sess.samples) == 0 {
		sess.sendError("no audio buffered")
		return
	}

	diag := whisper.Analyze(sess.samples)
	err := sess.engine.Transcribe(sess.srv.threads, sess.samples)
	sess.metrics.Transcription(err)
	if err != nil {
		sess.logger.Error().Err(err).Msg("ws: transcription failed")
		sess.sendError("transcription failed")
		return
	}

	segs := whisper.Segments(sess.engine)
	out := resultMessage{
		Type:         "result",
		Session:      sess.id,
		Sequence:     sess.seq,
		Forced:       forced,
		Segments:     make([]resultSegment, 0, len(segs)),
		DurationSec:  diag.Duration.Seconds(),
		LikelySilent: diag.LikelySilent,
	}
	for _, seg := range segs {
		out.Segments = append(out.Segments, resultSegment{
			Start: seg.StartSeconds(),
			End:   seg.EndSeconds(),
			Text:  seg.Text,
		})
		if out.Text != "" {
			out.Text += " "
		}
		out.Text += seg.Text
	}
	sess.send(out)
	sess.samples = sess.samples[:0]
}

func (sess *session) send(v any) {
	if err := sess.conn.WriteJSON(v); err != nil {
		sess.logger.Warn().Err(err).Msg("ws: write failed")
	}
}

func (sess *session) sendError(detail string) {
	sess.send(map[string]any{"type": "error", "detail": detail})
}

func (sess *session) close() {
	if sess.engine != nil {
		if err := sess.engine.Close(); err != nil {
			sess.logger.Warn().Err(err).Msg("ws: engine close failed")
		}
		sess.engine = nil
	}
	sess.metrics.Finish(sess.err)
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
