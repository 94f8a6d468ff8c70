// Command omnidao is a small operational CLI over the data-access layer:
// it pings configured backends, synchronizes schemas, and reports schema
// version decisions.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/config"
	"github.com/omnidao/omnidao/pkg/dao"
	"github.com/omnidao/omnidao/pkg/health"
	"github.com/omnidao/omnidao/pkg/logger"

	// Backend adapters register themselves on import.
	_ "github.com/omnidao/omnidao/internal/database/mongodb"
	_ "github.com/omnidao/omnidao/internal/database/mssql"
	_ "github.com/omnidao/omnidao/internal/database/mysql"
	_ "github.com/omnidao/omnidao/internal/database/postgres"
	_ "github.com/omnidao/omnidao/internal/database/sqlite"
)

var (
	configPath = flag.StringP("config", "c", "omnidao.yaml", "path to the YAML configuration file")
	schemaName = flag.StringP("schema", "s", "", "schema to operate on (default: all configured schemas)")
	timeout    = flag.Duration("timeout", 30*time.Second, "per-command timeout")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	log := logger.New("omnidao", "")
	if err := run(flag.Arg(0), log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: omnidao [flags] <ping|sync|version>\n\nFlags:\n%s", flag.CommandLine.FlagUsages())
}

func run(command string, log *logger.Logger) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	dctx := dao.NewContext(adapter.DefaultRegistry(), dao.WithLogger(log))
	defer dctx.Close()

	var selected []string
	for _, sc := range cfg.Schemas {
		if *schemaName != "" && sc.Name != *schemaName {
			continue
		}
		db := cfg.Databases[sc.Database]
		declared := sc.Schema
		if err := dctx.RegisterSchema(&declared, db.ConnectionConfig(sc.Database)); err != nil {
			return err
		}
		selected = append(selected, sc.Name)
	}
	if len(selected) == 0 {
		return fmt.Errorf("no schema matched (configured: %d, requested: %q)", len(cfg.Schemas), *schemaName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if command == "ping" {
		return ping(ctx, dctx, selected, log)
	}

	for _, name := range selected {
		d, err := dctx.DAO(name)
		if err != nil {
			return err
		}
		if err := runCommand(ctx, command, name, d, log); err != nil {
			return err
		}
	}
	return nil
}

// ping probes every selected schema and reports the aggregate, so one
// unreachable backend does not hide the state of the others.
func ping(ctx context.Context, dctx *dao.Context, selected []string, log *logger.Logger) error {
	checker := health.NewChecker()
	for _, name := range selected {
		d, err := dctx.DAO(name)
		if err != nil {
			return err
		}
		checker.RunCheck(name, func() error { return d.Ping(ctx) })
	}

	for _, check := range checker.Checks() {
		if check.Status == health.StatusHealthy {
			log.Infof("schema %s: backend reachable", check.Name)
		} else {
			log.Errorf("schema %s: %s", check.Name, check.Message)
		}
	}

	if overall := checker.Overall(); overall != health.StatusHealthy {
		return fmt.Errorf("backend health: %s", overall)
	}
	return nil
}

func runCommand(ctx context.Context, command, name string, d *dao.DAO, log *logger.Logger) error {
	switch command {
	case "sync":
		if err := d.SyncSchema(ctx); err != nil {
			return fmt.Errorf("schema %s: %w", name, err)
		}
		if err := d.SaveVersionInfo(ctx, "created", nil); err != nil {
			return fmt.Errorf("schema %s: %w", name, err)
		}
		log.Infof("schema %s: synchronized at version %s", name, d.Schema().Version)
		return nil

	case "version":
		decision, err := d.CheckVersion(ctx)
		if err != nil {
			return fmt.Errorf("schema %s: %w", name, err)
		}
		log.Infof("schema %s: action=%s compatible=%t (%s)", name, decision.Action, decision.Compatible, decision.Explanation)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
