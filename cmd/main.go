package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cfgPkg "github.com/xhad/pdfagent/pkg/config"
)

type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool

	config *cfgPkg.Config
	creds  cfgPkg.Credentials
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "pdfagent",
		Short: "Ask questions about your PDF documents",
		Long: `pdfagent indexes a set of documents, exposes each one to a language model
as a query tool and answers questions through an agent that picks the right tool.

It also ships a small chatbot that either answers text or generates an image.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to the .env file holding "+cfgPkg.APIKeyEnv)
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newAgentCmd(opts),
		newQueryCmd(opts),
		newChatbotCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) setup() error {
	logger, err := newLogger(o.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.logger = logger

	cfg, err := cfgPkg.LoadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("  %s", e.Error())
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}
	o.config = cfg
	o.creds = cfgPkg.LoadCredentials(o.envFile, logger)
	return nil
}

// newLogger logs warnings and above unless verbose is set, so skipped
// documents and a missing API key stay visible next to the console output.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = !verbose
	return cfg.Build()
}
