package whisperbridge

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/whisperbridge/internal/whisper"
)

var (
	benchKind    string
	benchThreads int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run engine micro-benchmarks",
	Run:   runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchKind, "kind", "all", "benchmark to run: memcpy, matmul or all")
	benchCmd.Flags().IntVarP(&benchThreads, "threads", "t", 0, "worker threads (0 = all cores)")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) {
	threads := benchThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	switch benchKind {
	case "memcpy":
		fmt.Println(whisper.BenchMemcpy(threads))
	case "matmul":
		fmt.Println(whisper.BenchMatMul(threads))
	case "all":
		fmt.Println(whisper.SystemInfo())
		fmt.Println(whisper.BenchMemcpy(threads))
		fmt.Println(whisper.BenchMatMul(threads))
	default:
		log.Fatal().Str("kind", benchKind).Msg("unknown benchmark kind")
	}
}
