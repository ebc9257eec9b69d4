// Package whisperbridge wires the command line surface. Every subcommand
// shares the config loader and the model resolver defined here.
package whisperbridge

import (
	stdlog "log"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/whisperbridge/internal/config"
)

var (
	// Debug forces debug-level logging regardless of config.
	Debug bool
	// ConfigFile points at an explicit config file instead of the search path.
	ConfigFile string
)

var rootCmd = &cobra.Command{
	Use:              "whisperbridge",
	Short:            "Local speech-to-text service built on whisper models",
	PersistentPreRun: initLog,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&Debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "path to config file")
}

func initLog(cmd *cobra.Command, args []string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	stdlog.SetOutput(os.Stderr)
}

// loadConfig reads the configuration and applies its log level unless the
// --debug flag already pinned one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigFile)
	if err != nil {
		return nil, err
	}
	if !Debug && cfg.LogLevel != "" {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}
	return cfg, nil
}
