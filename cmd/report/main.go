// Command report exports the cost allocation of one billing period as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/anomaly"
	"github.com/septivank/submetering-worker/internal/billing"
	"github.com/septivank/submetering-worker/internal/config"
	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/logging"
	"github.com/septivank/submetering-worker/internal/repository"
	"github.com/septivank/submetering-worker/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	now := time.Now()
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	month := fs.Int("month", int(now.Month()), "billing period month (1-12)")
	year := fs.Int("year", now.Year(), "billing period year")
	out := fs.String("out", "", "output file or directory; - writes to stdout (default: ./rozuctovani-YYYY-MM.csv)")
	locale := fs.String("locale", "", "column label locale: cs or en (default REPORT_LOCALE)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *month < 1 || *month > 12 {
		return fmt.Errorf("month must be between 1 and 12, got %d", *month)
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *locale == "" {
		*locale = cfg.Report.Locale
	}

	logger, err := logging.NewLogger(cfg.ServiceName + "-report")
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("[DATABASE] failed to create connection pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", zap.Error(err), zap.String("url", db.MaskPassword(cfg.Database.URL)))
		return fmt.Errorf("[DATABASE CONNECTION FAILED] cannot reach database: %w", err)
	}

	detector := anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
	reports := service.NewReportService(repository.NewRepository(pool), billing.NewBuilder(detector), logger)

	report, err := reports.Build(ctx, *month, *year)
	if err != nil {
		return err
	}

	for _, row := range report.Rows {
		for _, w := range row.Warnings {
			logger.Warn("report row flagged",
				zap.String("meter", row.Meter.SerialNumber),
				zap.String("reason", w.Reason),
				zap.String("detail", w.Detail),
			)
		}
	}

	var w io.Writer = os.Stdout
	path := *out
	if path != "-" {
		name := billing.FileName(report.Period)
		if path == "" {
			path = name
		} else if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = filepath.Join(path, name)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	if err := billing.WriteCSV(w, report.Rows, billing.LabelsFor(*locale)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info("report exported",
		zap.String("file", path),
		zap.Int("rows", len(report.Rows)),
		zap.String("total", report.Summary.Total.StringFixed(2)),
	)
	return nil
}
