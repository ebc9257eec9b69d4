// Package telemetry keeps process-wide service counters and per-session
// metrics for the transcription surfaces.
package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Recorder accumulates counters across all sessions and requests. The zero
// value is ready to use and safe for concurrent callers.
type Recorder struct {
	sessions       atomic.Int64
	activeSessions atomic.Int64
	chunks         atomic.Int64
	audioBytes     atomic.Int64
	transcriptions atomic.Int64
	failures       atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Sessions       int64 `json:"sessions"`
	ActiveSessions int64 `json:"active_sessions"`
	Chunks         int64 `json:"chunks"`
	AudioBytes     int64 `json:"audio_bytes"`
	Transcriptions int64 `json:"transcriptions"`
	Failures       int64 `json:"failures"`
}

func (r *Recorder) Snapshot() Snapshot {
	return Snapshot{
		Sessions:       r.sessions.Load(),
		ActiveSessions: r.activeSessions.Load(),
		Chunks:         r.chunks.Load(),
		AudioBytes:     r.audioBytes.Load(),
		Transcriptions: r.transcriptions.Load(),
		Failures:       r.failures.Load(),
	}
}

// RecordTranscription counts one finished pass outside any session, such as a
// one-shot HTTP request.
func (r *Recorder) RecordTranscription(err error) {
	r.transcriptions.Add(1)
	if err != nil {
		r.failures.Add(1)
	}
}

// SessionStarted registers a new streaming session and returns its tracker.
func (r *Recorder) SessionStarted(id string) *SessionMetrics {
	r.sessions.Add(1)
	r.activeSessions.Add(1)
	return &SessionMetrics{recorder: r, id: id, started: time.Now()}
}

// SessionMetrics tracks one streaming session. Finish is idempotent; the
// first call wins and logs the summary.
type SessionMetrics struct {
	recorder *Recorder
	id       string
	started  time.Time
	chunks   atomic.Int64
	bytes    atomic.Int64
	passes   atomic.Int64
	finished atomic.Bool
}

// Chunk counts one received audio chunk of n bytes.
func (s *SessionMetrics) Chunk(n int) {
	s.chunks.Add(1)
	s.bytes.Add(int64(n))
	s.recorder.chunks.Add(1)
	s.recorder.audioBytes.Add(int64(n))
}

// Transcription counts one pass run inside the session.
func (s *SessionMetrics) Transcription(err error) {
	s.passes.Add(1)
	s.recorder.RecordTranscription(err)
}

// Finish closes the session and writes its summary. err is the terminal
// session error, nil for a clean close.
func (s *SessionMetrics) Finish(err error) {
	if !s.finished.CompareAndSwap(false, true) {
		return
	}
	s.recorder.activeSessions.Add(-1)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("session", s.id).
		Dur("duration", time.Since(s.started)).
		Int64("chunks", s.chunks.Load()).
		Int64("audio_bytes", s.bytes.Load()).
		Int64("passes", s.passes.Load()).
		Msg("telemetry: session finished")
}
