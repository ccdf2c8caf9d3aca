package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/sadopc/flowbank/internal/config"
	"github.com/sadopc/flowbank/internal/di"
	"github.com/sadopc/flowbank/internal/export"
	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/store"
	"github.com/sadopc/flowbank/internal/tui"
)

const usage = `Usage: flowbank [flags] [command]

Commands:
  (none)                 run the terminal UI
  export csv|json <path> write the full history to a file
  backup <path>          write a compressed snapshot of the database
  restore <path>         replace the database with a snapshot
  verify                 check that account totals match the history

Flags:
`

func main() {
	flags := &config.CliFlags{}
	flag.StringVarP(&flags.ConfigPath, "config", "c", "", "path to config.yaml")
	flag.BoolVarP(&flags.DebugMode, "debug", "d", false, "log at debug level")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(flags, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *config.CliFlags, args []string) error {
	app, cleanup, err := di.InitApp(flags)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 {
		app.Log.Infof(logger.TypeApp, "starting flowbank, database %s", app.Config.Database.Path)
		if d := app.Config.Startup.LoadDelay; d > 0 {
			time.Sleep(d)
		}
		return tui.Run(ctx, app.Engine, app.Log)
	}

	s := app.Engine.Store
	switch args[0] {
	case "export":
		if len(args) != 3 {
			return errors.New("usage: flowbank export csv|json <path>")
		}
		items, err := s.ListHistory(ctx, store.HistoryFilter{})
		if err != nil {
			return err
		}
		switch args[1] {
		case "csv":
			err = export.HistoryToCSV(items, args[2])
		case "json":
			err = export.HistoryToJSON(items, args[2])
		default:
			return fmt.Errorf("unknown export format %q", args[1])
		}
		if err != nil {
			return err
		}
		fmt.Printf("exported %d history items to %s\n", len(items), args[2])

	case "backup":
		if len(args) != 2 {
			return errors.New("usage: flowbank backup <path>")
		}
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return err
		}
		if err := export.WriteBackup(snap, args[1]); err != nil {
			return err
		}
		fmt.Printf("backup written to %s\n", args[1])

	case "restore":
		if len(args) != 2 {
			return errors.New("usage: flowbank restore <path>")
		}
		snap, err := export.ReadBackup(args[1])
		if err != nil {
			return err
		}
		if err := s.RestoreSnapshot(ctx, snap); err != nil {
			return err
		}
		app.Log.Infof(logger.TypeApp, "restored snapshot from %s", args[1])
		fmt.Printf("restored %d tasks and %d history items\n", len(snap.Tasks), len(snap.History))

	case "verify":
		if err := app.Engine.Ledger.Verify(ctx); err != nil {
			return err
		}
		acc, err := app.Engine.Ledger.Accounts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("ok: balance %g, points %g, random picks %g\n", acc.Balance, acc.Points, acc.RandomPicks)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
