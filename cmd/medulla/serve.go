package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skeletor-js/medulla/internal/cache"
	"github.com/skeletor-js/medulla/internal/config"
	"github.com/skeletor-js/medulla/internal/logging"
	"github.com/skeletor-js/medulla/internal/mcp"
	"github.com/skeletor-js/medulla/internal/store"
)

// shutdownGrace is how long in-flight handlers get to finish after a
// signal before the process exits.
const shutdownGrace = 2 * time.Second

// warnThresholds logs when the project outgrows the sizes the engine is
// tuned for. Never fatal.
func warnThresholds(ctx context.Context, st *store.Store, c *cache.Cache, log zerolog.Logger) {
	if stats, err := c.GetStats(ctx); err == nil && stats.Entities > cache.EntityWarningThreshold {
		log.Warn().
			Int("entities", stats.Entities).
			Int("threshold", cache.EntityWarningThreshold).
			Msg("entity count exceeds recommended threshold, search may slow down")
	}
	if info, err := os.Stat(st.Path()); err == nil && info.Size() > cache.LoroSizeWarningThreshold {
		log.Warn().
			Int64("size_bytes", info.Size()).
			Int("threshold_bytes", cache.LoroSizeWarningThreshold).
			Msg("loro.db size exceeds recommended threshold")
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP protocol on stdin/stdout",
	Long: "Runs the medulla MCP server over standard input/output. Standard output\n" +
		"carries protocol traffic only; logs go to standard error\n" +
		"(MEDULLA_LOG_LEVEL or RUST_LOG controls the filter).",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		root := config.FindProjectRoot(cwd)
		if root == "" {
			root = cwd
		}

		log := logging.New()

		st, err := store.Open(root)
		if err != nil {
			return err
		}
		defer st.Close()

		if cfg, err := config.Load(st.Dir()); err != nil {
			log.Warn().Err(err).Msg("failed to load config, using defaults")
		} else {
			log.Debug().
				Str("embeddings_provider", cfg.Embeddings.Provider).
				Msg("config loaded")
		}

		c, err := cache.Open(st.Dir())
		if err != nil {
			return err
		}
		defer c.Close()

		warnThresholds(cmd.Context(), st, c, log)

		server := mcp.New(st, c, Version, log)

		// Bring the cache up to date before accepting requests; a merge
		// while the server was down shows up here as a version mismatch.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if reindexed, err := server.SyncCache(ctx); err != nil {
			return err
		} else if reindexed {
			log.Info().Msg("cache reindexed from snapshot")
		}

		stopWatch, err := server.WatchSnapshot(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("snapshot watcher unavailable, external merges sync on restart")
		} else {
			defer stopWatch()
		}

		err = server.Run(ctx)
		if ctx.Err() != nil {
			// Signal-initiated drain: give in-flight work a grace
			// period, then exit cleanly.
			log.Info().Msg("shutdown signal received, draining")
			time.Sleep(shutdownGrace)
			return nil
		}
		if err != nil {
			return fmt.Errorf("transport error: %w", err)
		}
		return nil
	},
}
