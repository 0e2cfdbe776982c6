package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/previewbasket/tabharvest/browser"
	"github.com/previewbasket/tabharvest/common"
	"github.com/previewbasket/tabharvest/embed"
	"github.com/previewbasket/tabharvest/runner"
	"github.com/previewbasket/tabharvest/store"
)

var rootCmd = &cobra.Command{
	Use:   "tabharvest",
	Short: "Collect preview data from open browser tabs into versioned sessions",
	Long: `tabharvest attaches to a running Chromium, harvests a preview
(title, description, representative image) from every open tab with a
tiered fallback so no tab comes back empty-handed, persists the batch as a
named session under storage-quota constraints, closes only the tabs that
produced a verified image, and enriches the stored items with vector
embeddings in the background.`,
	RunE: runHarvest,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.Flags()
	flags.String("chrome-url", "", "DevTools websocket URL of a running browser (launches one when empty)")
	flags.String("chrome-bin", "", "browser binary to launch when no --chrome-url is given")
	flags.Bool("headless", true, "launch the browser headless")
	flags.Int("concurrency", 6, "max extractions in flight")
	flags.Duration("poll-interval", 500*time.Millisecond, "extraction status poll interval")
	flags.Duration("extraction-budget", 8*time.Second, "wall-clock budget per tab for the extraction tier")
	flags.Duration("settle-delay", 300*time.Millisecond, "delay between focusing a tab and capturing it")
	flags.Int("session-cap", 10, "sessions kept after a quota eviction")
	flags.Int64("quota-bytes", 8<<20, "local store quota in bytes (0 disables)")
	flags.String("storage-root", "", "base path for the local state backend")
	flags.String("state-backend", "local", "state backend: local or dapr")
	flags.String("dapr-state-store", "statestore", "Dapr state store component name")
	flags.String("embedding-url", "", "base URL of the embedding backend (empty disables enrichment)")
	flags.Int("embedding-batch-size", 5, "items per embedding request")
	flags.Duration("embedding-delay", time.Second, "pause between embedding batches")

	if err := viper.BindPFlags(flags); err != nil {
		log.Fatal().Err(err).Msg("Failed to bind flags")
	}
}

func initConfig() {
	viper.SetEnvPrefix("TABHARVEST")
	viper.AutomaticEnv()
}

func loadConfig() common.HarvesterConfig {
	cfg := common.DefaultConfig()
	cfg.ChromeURL = viper.GetString("chrome-url")
	cfg.ChromeBin = viper.GetString("chrome-bin")
	cfg.Headless = viper.GetBool("headless")
	cfg.Concurrency = viper.GetInt("concurrency")
	cfg.PollInterval = viper.GetDuration("poll-interval")
	cfg.ExtractionBudget = viper.GetDuration("extraction-budget")
	cfg.SettleDelay = viper.GetDuration("settle-delay")
	cfg.SessionCap = viper.GetInt("session-cap")
	cfg.QuotaBytes = viper.GetInt64("quota-bytes")
	cfg.StorageRoot = viper.GetString("storage-root")
	cfg.StateBackend = viper.GetString("state-backend")
	cfg.DaprStateStore = viper.GetString("dapr-state-store")
	cfg.EmbeddingURL = viper.GetString("embedding-url")
	cfg.EmbeddingBatchSize = viper.GetInt("embedding-batch-size")
	cfg.EmbeddingDelay = viper.GetDuration("embedding-delay")
	cfg.RunID = common.GenerateRunID()

	if cfg.StorageRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("Cannot determine home directory for storage root")
		}
		cfg.StorageRoot = filepath.Join(home, ".tabharvest")
	}
	return cfg
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log.Info().Str("run_id", cfg.RunID).Msg("Starting tab harvest")

	ctx := cmd.Context()

	agent := browser.NewRodAgent(browser.Config{
		DebuggerURL: cfg.ChromeURL,
		Bin:         cfg.ChromeBin,
		Headless:    cfg.Headless,
	})
	if err := agent.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := agent.Close(); err != nil {
			log.Warn().Err(err).Msg("Error disconnecting from browser")
		}
	}()

	factory := &store.DefaultFactory{}
	kv, err := factory.Create(store.Config{
		Backend:        cfg.StateBackend,
		StorageRoot:    cfg.StorageRoot,
		QuotaBytes:     cfg.QuotaBytes,
		StateStoreName: cfg.DaprStateStore,
	})
	if err != nil {
		return err
	}
	defer kv.Close()

	sessions := store.NewSessionStore(kv, cfg.SessionCap)

	var enricher *embed.Enricher
	if cfg.EmbeddingURL != "" {
		enricher = embed.NewEnricher(embed.NewClient(cfg.EmbeddingURL), sessions, cfg.EmbeddingBatchSize, cfg.EmbeddingDelay)
	}

	// Enrichment outlives the run but not the process.
	enrichCtx, cancelEnrich := context.WithCancel(context.Background())
	defer cancelEnrich()

	outcome, err := runner.Run(ctx, enrichCtx, cfg, agent, sessions, enricher)
	if err != nil {
		return err
	}

	log.Info().
		Str("session", outcome.Session.Name).
		Int("items", outcome.Session.TabCount).
		Int("with_image", outcome.Stats.WithImage).
		Int("closed_tabs", len(outcome.Reaped.Closed)).
		Int("kept_tabs", len(outcome.Reaped.Kept)).
		Msg("Harvest complete")

	// A long-lived host would return here; this process waits so detached
	// enrichment is not killed mid-batch, but never longer than 5 minutes.
	select {
	case <-outcome.Enrichment:
	case <-time.After(5 * time.Minute):
		log.Warn().Msg("Giving up waiting for enrichment to finish")
	}
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Harvest failed")
	}
}
