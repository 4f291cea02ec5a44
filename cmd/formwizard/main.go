// Command formwizard lists, lints and fills quote-request forms and runs the
// reference submission sink.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard"
	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/internal/logging"
)

// Version set via ldflags during build.
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "formwizard:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand resolves from the persistent flags.
type app struct {
	configPath string
	logLevel   string
	formsDir   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "formwizard",
		Short:         "Schema-driven insurance quote-request wizards",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./"+config.DefaultFile+" when present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.formsDir, "forms", "", "directory of form documents (default: bundled forms)")

	root.AddCommand(newFormsCmd(a))
	root.AddCommand(newLintCmd(a))
	root.AddCommand(newFillCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.formsDir != "" {
		cfg.FormsDir = a.formsDir
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.With(zap.String("command", cmd.Name()))
	return nil
}

func (a *app) forms() (*formwizard.Registry, error) {
	return formwizard.LoadForms(a.cfg.FormsDir)
}
