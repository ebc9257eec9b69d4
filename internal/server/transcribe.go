package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/audio"
	"github.com/obiente/whisperbridge/internal/whisper"
)

const maxAudioBytes = 32 << 20

type transcribeSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type transcribeDiagnostics struct {
	Min          float32 `json:"min"`
	Max          float32 `json:"max"`
	MeanAbs      float32 `json:"mean_abs"`
	NonZeroRatio float64 `json:"non_zero_ratio"`
	LikelySilent bool    `json:"likely_silent"`
}

type transcribeResponse struct {
	Text        string                `json:"text"`
	Language    string                `json:"language"`
	DurationSec float64               `json:"duration_sec"`
	Segments    []transcribeSegment   `json:"segments"`
	Diagnostics transcribeDiagnostics `json:"diagnostics"`
}

// handleTranscribe accepts a multipart upload ("audio", optional "threads")
// and runs one blocking pass over the decoded buffer.
func (s *Server) handleTranscribe(c *gin.Context) {
	fh, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing audio file"})
		return
	}
	if fh.Size > maxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file too large"})
		return
	}

	threads := s.cfg.Threads
	if v := c.PostForm("threads"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threads"})
			return
		}
		threads = n
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}

	samples, err := audio.ToEngineBuffer(raw)
	if err != nil {
		log.Warn().Err(err).Str("file", fh.Filename).Msg("http: audio decode failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported or corrupt audio"})
		return
	}
	if len(samples) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio contains no samples"})
		return
	}

	diag := whisper.Analyze(samples)

	s.mu.Lock()
	eng, err := s.sharedEngine()
	if err != nil {
		s.mu.Unlock()
		log.Error().Err(err).Msg("http: engine init failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "engine init failed"})
		return
	}
	err = eng.Transcribe(threads, samples)
	var segs []whisper.Segment
	if err == nil {
		segs = whisper.Segments(eng)
	}
	s.mu.Unlock()

	s.recorder.RecordTranscription(err)
	if err != nil {
		log.Error().Err(err).Msg("http: transcription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcription failed"})
		return
	}

	resp := transcribeResponse{
		Language:    "en",
		DurationSec: diag.Duration.Seconds(),
		Segments:    make([]transcribeSegment, 0, len(segs)),
		Diagnostics: transcribeDiagnostics{
			Min:          diag.Min,
			Max:          diag.Max,
			MeanAbs:      diag.MeanAbs,
			NonZeroRatio: diag.NonZeroRatio,
			LikelySilent: diag.LikelySilent,
		},
	}
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		resp.Segments = append(resp.Segments, transcribeSegment{
			Start: seg.StartSeconds(),
			End:   seg.EndSeconds(),
			Text:  seg.Text,
		})
		parts = append(parts, seg.Text)
	}
	resp.Text = strings.Join(parts, " ")
	c.JSON(http.StatusOK, resp)
}
