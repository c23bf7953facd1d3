package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"metacat/internal/builder"
	"metacat/internal/config"
	"metacat/internal/history"
	"metacat/internal/store"
)

const logFileName = "metacat.log"

func main() {
	app := &cli.Command{
		Name:  "metacat",
		Usage: "Normalize heterogeneous metadata files into a document collection",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "suppress progress output and console logs",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log at debug level",
			},
		},
		Commands: []*cli.Command{
			buildCommand(),
			watchCommand(),
			inspectCommand(),
			historyCommand(),
		},
	}

	if err := app.Run(rootContext(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// rootContext cancels on SIGINT/SIGTERM so watch mode shuts down cleanly.
func rootContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

// ── Logger ─────────────────────────────────────────────────

// newLogger tees console output (stderr) with a log file written next to
// the config file, so a run always leaves a reviewable trace on disk.
func newLogger(cmd *cli.Command, configDir string) (*zap.Logger, func()) {
	level := zapcore.InfoLevel
	if cmd.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{}
	if !cmd.Bool("quiet") {
		console := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			level,
		)
		cores = append(cores, console)
	}

	logPath := filepath.Join(configDir, logFileName)
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		file := zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.Lock(f),
			level,
		)
		cores = append(cores, file)
	}

	log := zap.New(zapcore.NewTee(cores...))
	return log, func() { _ = log.Sync() }
}

func configArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() < 1 {
		return "", fmt.Errorf("usage: metacat %s <config.toml>", cmd.Name)
	}
	return cmd.Args().Get(0), nil
}

// ── build ──────────────────────────────────────────────────

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Build the collection from the configured metadata directory",
		ArgsUsage: "<config.toml>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "parallel file workers (overrides [build].workers)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "parse, flatten and check files without writing to the store",
			},
		},
		Action: runBuild,
	}
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	path, err := configArg(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, flush := newLogger(cmd, cfg.Dir)
	defer flush()

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	opts := builder.Options{
		Workers: int(cmd.Int("workers")),
		DryRun:  cmd.Bool("dry-run"),
	}
	if !cmd.Bool("quiet") {
		opts.Progress = terminalProgress()
	}

	b := builder.New(cfg, st, log, opts)
	summary, err := b.Run(ctx)
	if err != nil {
		return err
	}

	recordRun(cfg, log, summary)
	printSummary(cmd, summary)
	return nil
}

// terminalProgress returns a one-line carriage-return progress printer.
func terminalProgress() builder.Progress {
	return func(done, total int, path string) {
		fmt.Fprintf(os.Stderr, "\r%d/%d %s\x1b[K", done, total, filepath.Base(path))
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func printSummary(cmd *cli.Command, s *builder.Summary) {
	if cmd.Bool("quiet") {
		return
	}
	fmt.Printf("%d files found, %d processed, %d failed\n",
		s.FilesFound, s.FilesProcessed, s.FilesFailed)
	fmt.Printf("%d records upserted (%d new, %d replaced), %d fields dropped\n",
		s.RecordsUpserted, s.RecordsNew, s.RecordsReplaced, s.FieldsDropped)
	fmt.Printf("done in %s\n", s.Duration.Round(time.Millisecond))
}

// recordRun stores the run outcome in the history database when one is
// configured. History is best-effort and never fails the build.
func recordRun(cfg *config.Config, log *zap.Logger, s *builder.Summary) {
	path := cfg.HistoryPath()
	if path == "" {
		return
	}
	hs, err := history.Open(path)
	if err != nil {
		log.Warn("run history unavailable", zap.Error(err))
		return
	}
	defer hs.Close()

	now := time.Now()
	run := history.Run{
		StartedAt:      now.Add(-s.Duration),
		FinishedAt:     now,
		Status:         "success",
		FilesFound:     s.FilesFound,
		FilesProcessed: s.FilesProcessed,
		FilesFailed:    s.FilesFailed,
		FieldsDropped:  s.FieldsDropped,
	}
	if s.Failed() {
		run.Status = "error"
	}
	if _, err := hs.Record(run); err != nil {
		log.Warn("could not record run history", zap.Error(err))
	}
}

// ── watch ──────────────────────────────────────────────────

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Build, then rebuild on file changes or on the configured schedule",
		ArgsUsage: "<config.toml>",
		Action:    runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	path, err := configArg(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, flush := newLogger(cmd, cfg.Dir)
	defer flush()

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	b := builder.New(cfg, st, log, builder.Options{})
	return b.Watch(ctx, func(s *builder.Summary) {
		recordRun(cfg, log, s)
		printSummary(cmd, s)
	})
}

// ── inspect ────────────────────────────────────────────────

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show record count and per-field coverage of the collection",
		ArgsUsage: "<config.toml>",
		Action:    runInspect,
	}
}

func runInspect(ctx context.Context, cmd *cli.Command) error {
	path, err := configArg(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, flush := newLogger(cmd, cfg.Dir)
	defer flush()

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	recs, err := st.GetAll(ctx)
	if err != nil {
		return err
	}

	coverage := map[string]int{}
	for _, rec := range recs {
		for field := range rec.Fields {
			coverage[field]++
		}
	}
	fields := make([]string, 0, len(coverage))
	for f := range coverage {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	fmt.Printf("%d records\n", len(recs))
	for _, f := range fields {
		fmt.Printf("  %-40s %d/%d\n", f, coverage[f], len(recs))
	}
	return nil
}

// ── history ────────────────────────────────────────────────

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show past build runs",
		ArgsUsage: "<config.toml>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "most recent runs to show",
				Value: 20,
			},
		},
		Action: runHistory,
	}
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	path, err := configArg(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if cfg.HistoryPath() == "" {
		return fmt.Errorf("no [build].history database configured in %s", path)
	}

	hs, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer hs.Close()

	runs, err := hs.List(int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-7s  %d/%d files", r.FinishedAt.Format(time.RFC3339),
			r.Status, r.FilesProcessed, r.FilesFound)
		if r.FilesFailed > 0 {
			line += fmt.Sprintf(", %d failed", r.FilesFailed)
		}
		if r.Error != "" {
			line += "  " + r.Error
		}
		fmt.Println(line)
	}
	return nil
}
