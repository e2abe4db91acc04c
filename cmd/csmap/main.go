// Command csmap computes cell groups, signatures and pre-generated views of
// mapping descriptors, and resolves function import result types.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syssam/csmap/viewgen"
)

// Build information.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// cli is the state shared by the commands of one root command.
type cli struct {
	v          *viper.Viper
	configFile string
	metrics    bool
	watch      bool

	cfg *Config
	log *slog.Logger
	reg *prometheus.Registry
}

// newRootCmd returns the csmap command tree. Logs are written to stderr.
func newRootCmd(stderr io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), reg: prometheus.NewRegistry()}
	root := &cobra.Command{
		Use:           "csmap",
		Short:         "Inspect conceptual to store mappings",
		Long:          "csmap loads mapping descriptors and computes their cell groups, signatures and pre-generated views.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s, %s)", Version, GitCommit, runtime.Version()),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.configure(cmd, stderr)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !c.metrics {
				return nil
			}
			return c.writeMetrics(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "Path to config file (default ./.csmap.yaml)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("mode", "", "View mode: query or update")
	flags.Bool("views-for-each-type", false, "List a type query view for every mapped type")
	flags.Int("workers", 0, "Number of descriptors computed concurrently")
	flags.BoolVar(&c.metrics, "metrics", false, "Print cell group metrics to stderr on exit")
	for key, flag := range map[string]string{
		"logging.level":             "log-level",
		"logging.format":            "log-format",
		"views.mode":                "mode",
		"views.views_for_each_type": "views-for-each-type",
		"views.workers":             "workers",
	} {
		if err := c.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		c.cellgroupsCmd(),
		c.validateCmd(),
		c.signatureCmd(),
		c.pregenCmd(),
		c.discriminateCmd(),
		c.inspectCmd(),
		c.queryCmd(),
	)
	return root
}

// commandFlags are config keys bound to flags that more than one command
// may define. Only the executing command's flags are bound.
var commandFlags = map[string]string{
	"database.dialect": "dialect",
	"database.dsn":     "dsn",
	"database.schema":  "schema",
	"pregen.output":    "out",
	"pregen.package":   "package",
}

func (c *cli) configure(cmd *cobra.Command, stderr io.Writer) error {
	for key, name := range commandFlags {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := c.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	cfg, err := loadConfig(c.v, c.configFile)
	if err != nil {
		return err
	}
	log, err := cfg.newLogger(stderr)
	if err != nil {
		return err
	}
	c.cfg, c.log = cfg, log
	log.Debug("configuration loaded", "command", cmd.Name(), "config", c.v.ConfigFileUsed())
	return nil
}

// newCache returns a cell group cache reporting to the command registry.
// Every run gets its own cache so reloaded descriptors do not accumulate.
func (c *cli) newCache() *viewgen.Cache {
	reg := prometheus.NewRegistry()
	c.reg = reg
	return viewgen.NewCache(
		viewgen.WithLogger(c.log),
		viewgen.WithWorkers(c.cfg.Views.Workers),
		viewgen.WithRegisterer(reg),
	)
}

func (c *cli) writeMetrics(w io.Writer) error {
	mfs, err := c.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
