package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/42wim/wmix/exporter"
	"github.com/42wim/wmix/report"
	"github.com/42wim/wmix/wmi"
)

func (a *wmix) rootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           appName,
		Short:         "Query Windows Management Instrumentation",
		Long:          appName + " reports memory and storage information from WMI, runs ad-hoc WQL queries and exports the reports as Prometheus metrics.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd, cfgFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReport(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./"+appName+".yaml or <user config dir>/"+appName+"/"+appName+".yaml)")
	flags.StringP("namespace", "n", "cimv2", `WMI namespace, relative to root\ unless it starts with root\ or \\`)
	flags.StringP("output", "o", "text", "output format: text, table, json or yaml")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.String("threading", "multithreaded", "COM threading model: multithreaded or apartment")
	flags.Int("batch-size", 10, "objects fetched per enumerator call")

	root.AddCommand(
		&cobra.Command{
			Use:   "report",
			Short: "Print the memory and storage report",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runReport(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "memory",
			Short: "Print operating system memory and installed modules",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return a.runSingle(func(q report.Querier) (interface{}, error) { return report.Memory(q) })
			},
		},
		&cobra.Command{
			Use:   "storage",
			Short: "Print logical and physical disks",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return a.runSingle(func(q report.Querier) (interface{}, error) { return report.Storage(q) })
			},
		},
		a.queryCmd(),
		a.serveCmd(),
	)

	return root
}

// configure loads the config file, binds the flags of cmd and applies the
// log level.
func (a *wmix) configure(cmd *cobra.Command, cfgFile string) error {
	v, err := parseConfig(cfgFile)
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	a.v = v
	a.cfg = cfg
	a.level.Set(cfg.LogLevel)

	if f := v.ConfigFileUsed(); f != "" {
		a.log.Debug("config loaded", "file", f)
	}

	return nil
}

func (a *wmix) runReport(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	text := a.cfg.Output == report.FormatText
	if text {
		fmt.Fprintf(a.stdout, "%s system report\n\n", appName)
	}

	start := a.now()

	s, done, err := a.open(text)
	if err != nil {
		return err
	}
	defer done()

	host, err := report.Host(ctx)
	if err != nil {
		a.log.Warn("host info unavailable", "err", err)
	}

	sum, queryErr := report.NewSummary(s, host)

	if err := report.Render(a.stdout, a.cfg.Output, sum); err != nil {
		return err
	}

	if queryErr != nil {
		return queryErr
	}

	if text {
		fmt.Fprintf(a.stdout, "\nAll queries completed successfully! (%d ms)\n", a.now().Sub(start).Milliseconds())
	}

	return nil
}

func (a *wmix) runSingle(build func(report.Querier) (interface{}, error)) error {
	s, done, err := a.open(false)
	if err != nil {
		return err
	}
	defer done()

	v, err := build(s)
	if err != nil {
		return err
	}

	return report.Render(a.stdout, a.cfg.Output, v)
}

func (a *wmix) queryCmd() *cobra.Command {
	var columns []string

	cmd := &cobra.Command{
		Use:   "query <WQL>",
		Short: "Run a WQL query and print every returned object",
		Example: `  wmix query "SELECT Name, State FROM Win32_Service WHERE StartMode = 'Auto'"
  wmix query -o json --columns Name,ProcessId "SELECT * FROM Win32_Process"`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			s, done, err := a.open(false)
			if err != nil {
				return err
			}
			defer done()

			rs, err := s.ExecuteQuery(args[0])
			if err != nil {
				return err
			}
			defer rs.Close()

			t, err := report.Collect(rs, columns)
			if err != nil {
				return err
			}

			return report.Render(a.stdout, a.cfg.Output, t)
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "properties to print (default: the SELECT list)")

	return cmd
}

func (a *wmix) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Export the reports as Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx)
		},
	}
	cmd.Flags().String("listen", ":9182", "address to serve /metrics and /health on")

	return cmd
}

func (a *wmix) serve(ctx context.Context) error {
	// Scrapes run on net/http goroutines, so the session must live in the MTA.
	if a.cfg.Threading != wmi.MultiThreaded {
		a.log.Warn("serve forces the multithreaded COM model", "configured", a.cfg.Threading)
		a.cfg.Threading = wmi.MultiThreaded
	}

	s, done, err := a.open(false)
	if err != nil {
		return err
	}
	defer done()

	if a.v.ConfigFileUsed() != "" {
		a.v.OnConfigChange(func(e fsnotify.Event) {
			cfg, err := loadConfig(a.v)
			if err != nil {
				a.log.Warn("config reload failed", "file", e.Name, "err", err)
				return
			}
			a.level.Set(cfg.LogLevel)
			a.log.Info("config reloaded", "file", e.Name, "log-level", cfg.LogLevel)
		})
		a.v.WatchConfig()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		exporter.NewCollector(s, a.log),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return exporter.Serve(ctx, a.cfg.Listen, exporter.NewRouter(reg), a.log)
}
