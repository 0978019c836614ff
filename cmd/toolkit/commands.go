package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	toolkit "github.com/Maksumys/migration-toolkit"
	"github.com/sirupsen/logrus"
)

func runMigrate(args []string) error {
	return withManager("migrate", args, func(ctx context.Context, m *toolkit.MigrationManager, out io.Writer) error {
		report, err := m.Migrate(ctx)
		if err != nil {
			return err
		}
		if report.UpToDate {
			fmt.Fprintf(out, "Schema is up to date (version %s)\n", report.Version)
			return nil
		}
		for _, applied := range report.Applied {
			fmt.Fprintf(out, "applied %-6d %s (%s)\n", applied.Id, applied.Script, applied.Elapsed.Round(time.Millisecond))
		}
		for _, skipped := range report.Skipped {
			fmt.Fprintf(out, "skipped        %s\n", skipped)
		}
		fmt.Fprintf(out, "Current version: %s\n", report.Version)
		return nil
	})
}

func runClean(args []string) error {
	return withManager("clean", args, func(ctx context.Context, m *toolkit.MigrationManager, _ io.Writer) error {
		return m.Clean(ctx)
	})
}

func runTestData(args []string) error {
	return withManager("test-data", args, func(ctx context.Context, m *toolkit.MigrationManager, _ io.Writer) error {
		return m.TestData(ctx)
	})
}

func runVersion(args []string) error {
	return withManager("version", args, func(ctx context.Context, m *toolkit.MigrationManager, out io.Writer) error {
		version, ok, err := m.Version(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "none")
			return nil
		}
		fmt.Fprintln(out, version)
		return nil
	})
}

func runHistory(args []string) error {
	return withManager("history", args, func(ctx context.Context, m *toolkit.MigrationManager, out io.Writer) error {
		records, err := m.History(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVERSION\tDESCRIPTION\tSCRIPT\tINSTALLED BY\tINSTALLED ON\tTIME")
		for _, r := range records {
			version := r.Version
			if version == "" {
				version = "<<repeatable>>"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Id, version, r.Description, r.Script, r.InstalledBy,
				r.InstalledOn.Format(time.RFC3339), r.ExecutionTime)
		}
		return w.Flush()
	})
}

func runStart(args []string) error {
	return withManager("start", args, func(ctx context.Context, m *toolkit.MigrationManager, _ io.Writer) error {
		return m.Run(ctx)
	})
}

type commonFlags struct {
	config   string
	driver   string
	dsn      string
	dir      string
	table    string
	logLevel string
	timeout  time.Duration
}

func (c *commonFlags) register(set *flag.FlagSet) {
	set.StringVar(&c.config, "config", "", "Path to a YAML config file")
	set.StringVar(&c.driver, "driver", "postgres", "Database driver: postgres or sqlite")
	set.StringVar(&c.dsn, "dsn", os.Getenv("TOOLKIT_DSN"), "Database DSN (default $TOOLKIT_DSN)")
	set.StringVar(&c.dir, "dir", "", "Migration scripts directory, overrides the config location")
	set.StringVar(&c.table, "table", "", "History table name, overrides the config value")
	set.StringVar(&c.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	set.DurationVar(&c.timeout, "timeout", 10*time.Minute, "Overall command timeout")
}

// loadConfig merges the config file with the flag overrides.
func (c *commonFlags) loadConfig() (toolkit.Config, error) {
	cfg := toolkit.DefaultConfig()
	if c.config != "" {
		loaded, err := toolkit.LoadConfig(c.config)
		if err != nil {
			return toolkit.Config{}, err
		}
		cfg = loaded
	}
	if c.dir != "" {
		cfg.Location = c.dir
	}
	if c.table != "" {
		cfg.HistoryTable = c.table
	}
	return cfg, nil
}

type commandFunc func(ctx context.Context, m *toolkit.MigrationManager, out io.Writer) error

func withManager(name string, args []string, fn commandFunc) error {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	var flags commonFlags
	flags.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}

	return execute(flags, os.DirFS("."), os.Stdout, fn)
}

func execute(flags commonFlags, scripts fs.FS, out io.Writer, fn commandFunc) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(flags.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(flags.driver, flags.dsn, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	manager, err := toolkit.NewMigrationsManager(db,
		toolkit.WithConfig(cfg),
		toolkit.WithLogger(log),
		toolkit.WithScripts(scripts),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	return fn(ctx, manager, out)
}
