package whisperbridge

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/whisperbridge/internal/audio"
	"github.com/obiente/whisperbridge/internal/whisper"
)

var (
	transcribeJSON    bool
	transcribeThreads int
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio.wav>",
	Short: "Transcribe a single audio file and print the result",
	Args:  cobra.ExactArgs(1),
	Run:   runTranscribe,
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeJSON, "json", false, "emit JSON instead of plain text")
	transcribeCmd.Flags().IntVarP(&transcribeThreads, "threads", "t", 0, "decoder threads (0 = config, then all cores)")
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatal().Err(err).Str("file", args[0]).Msg("read audio failed")
	}
	samples, err := audio.ToEngineBuffer(raw)
	if err != nil {
		log.Fatal().Err(err).Str("file", args[0]).Msg("decode audio failed")
	}

	modelPath, err := resolveModel(cmd.Context(), cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("model resolve failed")
	}
	eng, err := whisper.NewEngine(modelPath)
	if err != nil {
		log.Fatal().Err(err).Str("model", modelPath).Msg("engine init failed")
	}
	defer eng.Close()

	threads := transcribeThreads
	if threads <= 0 {
		threads = cfg.Threads
	}
	diag := whisper.Analyze(samples)
	if err := eng.Transcribe(threads, samples); err != nil {
		log.Fatal().Err(err).Msg("transcription failed")
	}
	segs := whisper.Segments(eng)

	if transcribeJSON {
		printJSON(segs, diag)
		return
	}
	for _, seg := range segs {
		fmt.Printf("[%s --> %s]  %s\n", formatTimestamp(seg.StartTime()), formatTimestamp(seg.EndTime()), seg.Text)
	}
}

func printJSON(segs []whisper.Segment, diag whisper.Diagnostics) {
	type segmentOut struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	}
	out := struct {
		DurationSec  float64      `json:"duration_sec"`
		LikelySilent bool         `json:"likely_silent"`
		Segments     []segmentOut `json:"segments"`
	}{
		DurationSec:  diag.Duration.Seconds(),
		LikelySilent: diag.LikelySilent,
		Segments:     make([]segmentOut, 0, len(segs)),
	}
	for _, seg := range segs {
		out.Segments = append(out.Segments, segmentOut{
			Start: seg.StartSeconds(),
			End:   seg.EndSeconds(),
			Text:  seg.Text,
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func formatTimestamp(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}
