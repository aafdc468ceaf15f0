package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/config"
	"github.com/t77yq/coastal-alert/internal/directory"
)

var errCacheDisabled = errors.New("recipient cache is not configured (directory.cache.redis_addr)")

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Manage the recipient directory",
}

var directoryFlushCmd = &cobra.Command{
	Use:   "flush-cache",
	Short: "Drop cached recipient lists so the next dispatch reads the directory",
	RunE:  runDirectoryFlush,
}

func init() {
	directoryCmd.AddCommand(directoryFlushCmd)
}

func runDirectoryFlush(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := flushRecipientCache(cmd.Context(), cfg.Directory.Cache, logger); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Recipient cache flushed")
	return nil
}

func flushRecipientCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) error {
	if cfg.RedisAddr == "" {
		return errCacheDisabled
	}

	client := newCacheClient(cfg)
	defer client.Close()

	cache := directory.NewCachedDirectory(nil, client, cfg.TTL, logger)
	if err := cache.Invalidate(ctx); err != nil {
		return err
	}
	logger.Info("Recipient cache flushed", zap.String("redis_addr", cfg.RedisAddr))
	return nil
}
