package main

import (
	"context"
	"encoding/csv"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"schoolsite/internal/donations"
	"schoolsite/internal/submissions"
	"schoolsite/pkg/config"
	"schoolsite/pkg/database"
	"schoolsite/pkg/logger"
)

func main() {
	var (
		submissionsOut = flag.String("submissions", "data/submissions.csv", "output CSV path for the submission ledger")
		donationsOut   = flag.String("donations", "data/donations.csv", "output CSV path for recorded donations")
		limit          = flag.Int("limit", 500, "max rows per ledger")
		configPath     = flag.String("config", os.Getenv(config.EnvFile), "YAML config file")
	)
	flag.Parse()

	log := logger.Init(&logger.Config{Level: "info", Output: os.Stderr, TimeFormat: "15:04:05", Prefix: "export"})

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.OpenMigrated(ctx, database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Error("database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := exportSubmissions(ctx, submissions.NewRepo(db), *submissionsOut, *limit); err != nil {
		log.Error("export submissions failed", "err", err)
		os.Exit(1)
	}
	if err := exportDonations(ctx, donations.NewLedger(db), *donationsOut, *limit); err != nil {
		log.Error("export donations failed", "err", err)
		os.Exit(1)
	}
	log.Info("ledgers exported", "submissions", *submissionsOut, "donations", *donationsOut)
}

func create(path string) (*os.File, *csv.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, csv.NewWriter(f), nil
}

func exportSubmissions(ctx context.Context, repo *submissions.Repo, outPath string, limit int) error {
	items, err := repo.List(ctx, submissions.ListQuery{Limit: limit})
	if err != nil {
		return err
	}
	f, w, err := create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := w.Write([]string{"id", "kind", "status", "cms_id", "error", "created_at"}); err != nil {
		return err
	}
	for _, s := range items {
		rec := []string{
			strconv.FormatInt(s.ID, 10),
			s.Kind,
			s.Status,
			s.CMSID,
			s.Error,
			s.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func exportDonations(ctx context.Context, ledger *donations.Ledger, outPath string, limit int) error {
	items, err := ledger.List(ctx, limit)
	if err != nil {
		return err
	}
	f, w, err := create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := w.Write([]string{"session_id", "cms_donation_id", "email", "amount", "currency", "frequency", "recorded_at"}); err != nil {
		return err
	}
	for _, d := range items {
		rec := []string{
			d.SessionID,
			d.CMSDonationID,
			d.Email,
			donations.Units(d.AmountCents).StringFixed(2),
			d.Currency,
			d.Frequency,
			d.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
