package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/QuantaDist/internal/config"
	"github.com/dshills/QuantaDist/internal/log"
	"github.com/dshills/QuantaDist/internal/metrics"
	"github.com/dshills/QuantaDist/internal/serde"
	"github.com/dshills/QuantaDist/internal/serde/protobuf"
	"github.com/dshills/QuantaDist/internal/sql/executor"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

// options are the flags shared by every command.
type options struct {
	configFile string
	flags      *pflag.FlagSet
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "quantadist",
		Short:        "Rebuild and run serialized physical plans",
		SilenceUsage: true,
	}
	opts.flags = cmd.PersistentFlags()
	opts.flags.StringVar(&opts.configFile, "config", "", "Path to executor configuration file")
	config.RegisterFlags(opts.flags)

	cmd.AddCommand(explainCommand(opts), runCommand(opts), convertCommand(), versionCommand())
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "QuantaDist v%s (commit: %s)\n", version, commit)
		},
	}
}

// session is the state a command works with after flags are applied.
type session struct {
	config     *config.ExecutorConfig
	logger     log.Logger
	registry   *prometheus.Registry
	translator *serde.Translator
}

func newSession(opts *options) (*session, error) {
	cfg, err := config.LoadWithFlags(opts.configFile, opts.flags)
	if err != nil {
		return nil, err
	}
	logger := log.Configure(cfg.Log)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	tr, err := serde.NewTranslator(
		serde.WithConfig(cfg),
		serde.WithLogger(logger),
		serde.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	return &session{config: cfg, logger: logger, registry: reg, translator: tr}, nil
}

// load reads the plan at path and translates it.
func (s *session) load(path string) (executor.ExecutionPlan, error) {
	node, err := protobuf.ReadPlanFile(path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("plan loaded", "path", path, "root", node.VariantName())
	return s.translator.Translate(node)
}
