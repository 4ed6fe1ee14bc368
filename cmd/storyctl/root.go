package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dreamteller-api/internal/config"
	"dreamteller-api/internal/wire"
	"dreamteller-api/pkg/logger"
)

type rootOptions struct {
	configDir  string
	archiveDir string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "storyctl",
		Short:         "Generate illustrated stories and manage story archives",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "configs", "directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&opts.archiveDir, "archive-dir", "", "override archive.dir")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newDeleteCmd(opts),
	)
	return cmd
}

// loadConfig 读取配置并应用命令行覆盖
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(o.configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.archiveDir != "" {
		cfg.Archive.Dir = o.archiveDir
	}
	logger.Init(o.logLevel, "text")
	return cfg, nil
}

func (o *rootOptions) core() (*wire.Core, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	core, err := wire.InitializeCore(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return core, nil
}
