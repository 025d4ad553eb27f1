// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

// Command imessage-exporter reads a Messages database and writes
// per-chat transcript files.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/deven/imessage-exporter/lib/body"
	"github.com/deven/imessage-exporter/lib/codec"
	"github.com/deven/imessage-exporter/lib/config"
	"github.com/deven/imessage-exporter/lib/export"
	"github.com/deven/imessage-exporter/lib/messagedb"
	"github.com/deven/imessage-exporter/lib/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("imessage-exporter", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to run configuration file")
	dbPath := flags.String("db", "", "path to chat.db (overrides config)")
	outPath := flags.StringP("out", "o", "", "output directory (overrides config)")
	format := flags.StringP("format", "f", "", "export format: txt or json (overrides config)")
	compress := flags.Bool("compress", false, "zstd-compress output files")
	startDate := flags.String("start-date", "", "only export messages on or after this YYYY-MM-DD date")
	endDate := flags.String("end-date", "", "only export messages before this YYYY-MM-DD date")
	diagnostic := flags.BoolP("diagnostic", "d", false, "print database decode statistics instead of exporting")
	debugRowID := flags.Int64("debug-rowid", 0, "dump one message's decoded node tree and exit")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if *showVersion {
		fmt.Printf("imessage-exporter %s\n", version.Info())
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *outPath != "" {
		cfg.Export.Path = *outPath
	}
	if *format != "" {
		cfg.Export.Format = *format
	}
	if *compress {
		cfg.Export.Compress = true
	}
	if *startDate != "" {
		cfg.Filter.StartDate = *startDate
	}
	if *endDate != "" {
		cfg.Filter.EndDate = *endDate
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	logger := newLogger(cfg.Logging.Level)

	db, err := messagedb.Open(messagedb.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	defer db.Close()

	ctx := context.Background()

	switch {
	case *debugRowID != 0:
		err = dumpMessage(ctx, db, *debugRowID)
	case *diagnostic:
		err = runDiagnostic(ctx, db, logger)
	default:
		err = runExport(ctx, db, cfg, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig prefers the explicit flag, then the environment variable,
// then defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// runExport streams every message through text generation and the
// configured exporter. Per-message decode failures are logged and
// skipped; only I/O failures abort the run.
func runExport(ctx context.Context, db *messagedb.DB, cfg *config.Config, logger *slog.Logger) error {
	start, end, err := cfg.Filter.Range()
	if err != nil {
		return err
	}

	exporter, err := export.New(cfg.Export.Format, export.Options{
		Path:     cfg.Export.Path,
		Compress: cfg.Export.Compress,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	conn, err := db.Take(ctx)
	if err != nil {
		return err
	}
	defer db.Put(conn)

	began := time.Now()
	var exported, skipped int64
	err = messagedb.StreamMessages(ctx, conn, func(m *messagedb.Message) error {
		if t := m.Time(); !inRange(t, start, end) {
			return nil
		}
		if err := m.GenerateText(conn, logger); err != nil {
			if errors.Is(err, messagedb.ErrNoText) {
				if _, ok := m.Announcement(); !ok {
					if _, ok := m.Tapback(); !ok && !m.HasAttachments() {
						logger.Debug("message has no text", "rowid", m.RowID)
					}
				}
			} else {
				logger.Warn("skipping message", "rowid", m.RowID, "error", err)
				skipped++
				return nil
			}
		}
		if err := exporter.Export(m); err != nil {
			return err
		}
		exported++
		return nil
	})
	if err != nil {
		exporter.Finish()
		return err
	}
	if err := exporter.Finish(); err != nil {
		return err
	}

	logger.Info("export complete",
		"messages", exported,
		"skipped", skipped,
		"format", cfg.Export.Format,
		"path", cfg.Export.Path,
		"elapsed", time.Since(began).Round(time.Millisecond))
	return nil
}

func inRange(t time.Time, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}

// runDiagnostic reports how many message bodies decode through each
// path without writing anything.
func runDiagnostic(ctx context.Context, db *messagedb.DB, logger *slog.Logger) error {
	conn, err := db.Take(ctx)
	if err != nil {
		return err
	}
	defer db.Put(conn)

	total, err := messagedb.CountMessages(conn)
	if err != nil {
		return err
	}

	var typed, legacy, columnOnly, noText, failed int64
	err = messagedb.StreamMessages(ctx, conn, func(m *messagedb.Message) error {
		switch err := m.GenerateText(conn, logger); {
		case errors.Is(err, messagedb.ErrNoText):
			noText++
		case err != nil:
			failed++
		case m.BodySource == body.SourceTypedStream:
			typed++
		case m.BodySource == body.SourceLegacy:
			legacy++
		case m.Text != "":
			columnOnly++
		default:
			noText++
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("messages:            %d\n", total)
	fmt.Printf("typedstream bodies:  %d\n", typed)
	fmt.Printf("legacy bodies:       %d\n", legacy)
	fmt.Printf("plain column text:   %d\n", columnOnly)
	fmt.Printf("no text:             %d\n", noText)
	fmt.Printf("blob read failures:  %d\n", failed)
	return nil
}

// dumpMessage prints one message's decoded node tree in CBOR
// diagnostic notation, for inspecting archives that decode strangely.
func dumpMessage(ctx context.Context, db *messagedb.DB, rowid int64) error {
	conn, err := db.Take(ctx)
	if err != nil {
		return err
	}
	defer db.Put(conn)

	m, err := messagedb.MessageByRowID(ctx, conn, rowid)
	if err != nil {
		return err
	}
	blob, err := m.AttributedBody(conn)
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		fmt.Printf("rowid %d has no body archive; column text: %q\n", rowid, m.Text)
		return nil
	}
	res, err := body.Decode(blob)
	if err != nil {
		return fmt.Errorf("decode rowid %d: %w", rowid, err)
	}
	fmt.Printf("source: %s\ntext: %q\n", res.Source, res.Text)

	encoded, err := codec.Marshal(res.Nodes)
	if err != nil {
		return err
	}
	diag, err := codec.Diagnose(encoded)
	if err != nil {
		return err
	}
	fmt.Println(diag)
	return nil
}
