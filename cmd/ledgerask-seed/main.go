package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"

	"github.com/ledgerask/ledgerask/internal/app"
	"github.com/ledgerask/ledgerask/internal/config"
	"github.com/ledgerask/ledgerask/internal/fixtures"
	"github.com/ledgerask/ledgerask/internal/migrations"
	"github.com/ledgerask/ledgerask/internal/observability"
	"github.com/ledgerask/ledgerask/internal/query"
	"github.com/ledgerask/ledgerask/internal/store"
)

func main() {
	fixturePath := flag.String("fixtures", "", "YAML fixture file; empty uses the built-in set")
	generate := flag.Bool("generate", false, "generate fixtures instead of reading YAML")
	seed := flag.Int64("seed", 1, "generator seed")
	customers := flag.Int("customers", 25, "generator customer cardinality")
	salesRows := flag.Int("sales-rows", 200, "generated sales rows")
	orderRows := flag.Int("order-rows", 200, "generated order rows")
	replace := flag.Bool("replace", false, "delete existing rows before loading")
	skipLoad := flag.Bool("skip-load", false, "only apply migrations and run the smoke check")
	export := flag.Bool("export", false, "upload parquet snapshots to the object store")
	down := flag.Int("down", 0, "roll back this many migrations and exit")
	status := flag.Bool("status", false, "print migration status and exit")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "dotenv error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("ledgerask-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The parquet driver has no writable database; seed an in-memory one and export it.
	var opener store.Opener
	switch cfg.Store.Driver {
	case store.DriverDuckDB:
		opener = store.DuckDBOpener{Path: cfg.Store.Path}
	case store.DriverPostgres:
		opener = store.PostgresOpener{DSN: cfg.Store.DSN}
	case store.DriverParquet:
		opener = store.DuckDBOpener{}
		*export = true
	}

	handle, err := opener.Open(ctx)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = handle.Close() }()

	runner := migrations.NewRunner()
	if *status {
		statuses, err := runner.Status(ctx, handle.DB)
		if err != nil {
			logger.Error("migration status failed", slog.Any("error", err))
			os.Exit(1)
		}
		printStatus(statuses)
		return
	}
	if *down > 0 {
		rolledBack, err := runner.Down(ctx, handle.DB, *down)
		if err != nil {
			logger.Error("migration down failed", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", rolledBack)
		return
	}
	applied, err := runner.Up(ctx, handle.DB, 0)
	if err != nil {
		logger.Error("migration up failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("applied %d migration(s)\n", applied)

	if !*skipLoad {
		set, err := fixtureSet(*fixturePath, *generate, *seed, *customers, *salesRows, *orderRows)
		if err != nil {
			logger.Error("failed to prepare fixtures", slog.Any("error", err))
			os.Exit(1)
		}
		counts, err := fixtures.Load(ctx, handle.DB, set, fixtures.LoadOptions{Replace: *replace})
		if err != nil {
			logger.Error("failed to load fixtures", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("loaded %d sales and %d orders rows\n", counts.Sales, counts.Orders)
	}

	results, err := fixtures.Smoke(ctx, handle.DB, query.NewEngine())
	if err != nil {
		logger.Error("smoke check failed", slog.Any("error", err))
		os.Exit(1)
	}
	for _, result := range results {
		printResult(result)
	}

	if *export {
		objectStore, err := app.ObjectStore(ctx, cfg)
		if err != nil {
			logger.Error("failed to open object store", slog.Any("error", err))
			os.Exit(1)
		}
		set, err := fixtures.ReadSet(ctx, handle.DB)
		if err != nil {
			logger.Error("failed to read tables for export", slog.Any("error", err))
			os.Exit(1)
		}
		exported, err := fixtures.Export(ctx, objectStore, cfg.Store.Dataset, set)
		if err != nil {
			logger.Error("snapshot export failed", slog.Any("error", err))
			os.Exit(1)
		}
		for _, item := range exported {
			fmt.Printf("exported %s: %d rows, %d bytes -> %s\n", item.Table, item.Rows, item.Bytes, item.Key)
		}
	}
}

func fixtureSet(path string, generate bool, seed int64, customers, salesRows, orderRows int) (fixtures.Set, error) {
	switch {
	case generate:
		return fixtures.NewGenerator(seed, customers).Set(salesRows, orderRows), nil
	case path != "":
		return fixtures.LoadFile(path)
	default:
		return fixtures.Default()
	}
}

func printResult(result query.Result) {
	fmt.Printf("\n%s (first %d rows)\n", result.Table, fixtures.SmokeRowLimit)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(result.Columns)
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = fmt.Sprint(value)
		}
		table.Append(cells)
	}
	table.Render()
}

func printStatus(statuses []migrations.Status) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"version", "name", "applied"})
	for _, item := range statuses {
		table.Append([]string{fmt.Sprint(item.Version), item.Name, fmt.Sprint(item.Applied)})
	}
	table.Render()
}
