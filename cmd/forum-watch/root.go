package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"forum-watch/internal/app"
	"forum-watch/internal/config"
	"forum-watch/internal/fetcher"
	"forum-watch/internal/normalize"
	"forum-watch/internal/observability"
	"forum-watch/internal/render"
	"forum-watch/internal/scraper"
	"forum-watch/internal/storage"
	"forum-watch/internal/storage/mssql"
)

const defaultConfigPath = "configs/config.yaml"

type options struct {
	configPath string
	section    string
	sort       string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "forum-watch",
		Short: "Watches a p9.com.tw forum section and prints new posts.",
		Long: "Polls a forum section listing on a fixed interval and prints the posts " +
			"that appeared since the previous poll. Pinned posts are ignored.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg, filepath.Dir(opts.configPath))
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to config YAML")
	cmd.Flags().StringVar(&opts.section, "section", "", "forum section: key (whisky) or label (威士忌)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "sort order: key (post_time), label (發文時間) or query value (Post_Time)")

	cmd.AddCommand(newSectionsCmd())

	return cmd
}

// loadConfig читает конфиг и накладывает флаги. Отсутствие файла по
// умолчанию не ошибка: работаем на встроенных значениях.
func loadConfig(opts *options, explicit bool) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(opts.configPath); errors.Is(err, os.ErrNotExist) && !explicit {
		cfg = config.Default()
	} else {
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if opts.section != "" {
		cfg.Listing.Section = opts.section
	}
	if opts.sort != "" {
		cfg.Listing.Sort = opts.sort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return cfg, nil
}

func run(parent context.Context, out io.Writer, cfg *config.Config, configDir string) error {
	section, sort, err := resolveTarget(cfg, isInteractive(), interactiveChoose)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	selectors, err := cfg.LoadListingSelectors(configDir)
	if err != nil {
		return fmt.Errorf("failed to load selectors: %w", err)
	}

	normalizer := normalize.NewNormalizer(cfg.Normalize)
	scr := scraper.NewScraper(selectors, normalizer, cfg.Filter.PinTag)
	renderer := render.NewRenderer(out, cfg.Render, normalizer, scraper.NewDateParser(time.Local))

	var source app.Source
	if cfg.Rod.Enabled {
		rodFetcher, err := fetcher.NewRodFetcher(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rodFetcher.Close(); err != nil {
				logger.Warn("Failed to close browser", "error", err.Error())
			}
		}()
		source = rodFetcher
	} else {
		source = fetcher.NewFetcher(cfg, logger)
	}

	var repo storage.Repository
	if cfg.Storage.Enabled {
		mssqlRepo, err := mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer func() {
			if err := mssqlRepo.Close(); err != nil {
				logger.Warn("Failed to close archive", "error", err.Error())
			}
		}()
		repo = mssqlRepo
	}

	poller, err := app.NewPoller(cfg, logger, source, scr, renderer, repo, section, sort)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "目標網址：%s\n", poller.ListingURL())

	ctx, cancel := app.GracefulShutdown(parent, logger)
	defer cancel()

	return poller.Run(ctx)
}
