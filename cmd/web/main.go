package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/platform/config"
	"bitpoet.dev/bitpoet-web/internal/platform/observability"
	"bitpoet.dev/bitpoet-web/internal/platform/secrets"
)

var envFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "web",
		Short:         "BitPoet marketing site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read after the process environment")
	root.AddCommand(newServeCmd(), newSitemapCmd())
	return root
}

// bootstrap loads configuration with secret references resolved and builds the
// process logger.
func bootstrap(ctx context.Context) (config.Config, *zap.Logger, func(), error) {
	envValues, err := config.EnvironmentValues(config.WithEnvFile(envFile))
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("read environment: %w", err)
	}

	logger, err := observability.NewLogger(observability.LoggerOptions{
		Console: truthy(envValues["BITPOET_DEV"]),
	})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("initialise logger: %w", err)
	}
	logger = logger.Named("web")

	project := envValues["BITPOET_SECRETS_PROJECT_ID"]
	if project == "" {
		project = envValues["BITPOET_PUBSUB_PROJECT_ID"]
	}
	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	)
	if err != nil {
		_ = logger.Sync()
		return config.Config{}, nil, nil, fmt.Errorf("initialise secret fetcher: %w", err)
	}
	cleanup := func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
		_ = logger.Sync()
	}

	cfg, err := config.Load(ctx,
		config.WithEnvFile(envFile),
		config.WithSecretResolver(fetcher),
	)
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Error("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		cleanup()
		return config.Config{}, nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, logger, cleanup, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
