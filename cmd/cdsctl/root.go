package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clinical-decision-agent/internal/app"
	"clinical-decision-agent/internal/config"
	"clinical-decision-agent/internal/logging"
)

type cli struct {
	logLevel string
	logger   *zap.Logger
	app      *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "cdsctl",
		Short:         "Clinical decision support: personalization, research and safety validation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.AddCommand(newRunCmd(c), newScenariosCmd(c), newCheckCmd(c))
	return cmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := c.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	c.logger, err = logging.NewConsole(level)
	if err != nil {
		return err
	}
	c.app, err = app.New(cmd.Context(), cfg, c.logger)
	return err
}

func (c *cli) teardown() error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.app != nil {
		return c.app.Close()
	}
	return nil
}
