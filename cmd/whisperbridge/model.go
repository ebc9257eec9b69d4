package whisperbridge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/whisperbridge/internal/config"
	"github.com/obiente/whisperbridge/internal/models"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage whisper model files",
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known model variants and their local status",
	Run:   runModelList,
}

var modelDownloadCmd = &cobra.Command{
	Use:   "download <variant>",
	Short: "Download a model variant into the data directory",
	Args:  cobra.ExactArgs(1),
	Run:   runModelDownload,
}

func init() {
	modelCmd.AddCommand(modelListCmd, modelDownloadCmd)
	rootCmd.AddCommand(modelCmd)
}

// resolveModel maps the configured model onto a local file, downloading the
// managed variant when allowed and necessary.
func resolveModel(ctx context.Context, cfg *config.Config, download bool) (string, error) {
	manifest, err := models.DefaultManifest()
	if err != nil {
		return "", err
	}
	mgr, err := models.NewManager(cfg.ModelsDir(), manifest)
	if err != nil {
		return "", err
	}
	defer mgr.Close()

	path, err := mgr.Resolve(cfg.ModelVariant, cfg.ModelPath)
	if err == nil {
		return path, nil
	}
	if !download || cfg.ModelPath != "" {
		return "", err
	}
	log.Info().Str("variant", cfg.ModelVariant).Msg("model not present locally, downloading")
	return mgr.Ensure(ctx, cfg.ModelVariant)
}

func openManager(cfg *config.Config) (*models.Manager, *models.Manifest, error) {
	manifest, err := models.DefaultManifest()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := models.NewManager(cfg.ModelsDir(), manifest)
	if err != nil {
		return nil, nil, err
	}
	return mgr, manifest, nil
}

func runModelList(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	mgr, manifest, err := openManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("model manager init failed")
	}
	defer mgr.Close()

	for _, id := range manifest.IDs() {
		v, _ := manifest.Variant(id)
		status := "missing"
		if path, err := mgr.Resolve(id, ""); err == nil {
			status = path
		}
		fmt.Printf("%-12s %-28s %s\n", id, v.Filename, status)
	}
}

func runModelDownload(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	mgr, _, err := openManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("model manager init failed")
	}
	defer mgr.Close()

	path, err := mgr.Ensure(cmd.Context(), args[0])
	if err != nil {
		log.Fatal().Err(err).Str("variant", args[0]).Msg("download failed")
	}
	fmt.Println(path)
}
