package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	screenpilot "github.com/menta2k/screen-pilot"
	"github.com/menta2k/screen-pilot/internal/config"
	"github.com/menta2k/screen-pilot/internal/logging"
)

// app carries what PersistentPreRunE prepared for the subcommands.
type app struct {
	cfgFile string
	dryRun  bool
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "screen-pilot",
		Short: "Screen-driven fleet automation for the game client.",
		Long: `Screen-driven fleet automation for the game client.

OCR runs on tesseract by default. The ollama and llamacpp engines read text
but report no word positions, so prompts closed by clicking a word (the
cancel button) are left to the back key under them.`,
		Version:       screenpilot.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().BoolVar(&a.dryRun, "dry-run", false, "record input instead of sending it")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newHuntCmd(a),
		newGatherCmd(a),
		newEliteCmd(a),
		newRewardsCmd(a),
		newLocateCmd(a),
		newReadCmd(a),
		newConfigCmd(a),
	)
	return root
}

// load reads the configuration and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Actuator.DryRun = a.dryRun
	}
	logger, err := logging.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	logger.Debug("configuration loaded", zap.String("file", a.cfgFile), zap.String("version", screenpilot.Version))
	return nil
}
