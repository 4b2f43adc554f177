package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-imagepick"
	"github.com/anatolykoptev/go-imagepick/internal/config"
	"github.com/anatolykoptev/go-imagepick/internal/history"
)

func runCmd() *cobra.Command {
	var (
		outDir       string
		manifestPath string
		strategy     string
		historyFile  string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "run <theme-file>",
		Short: "Acquire one image per term of a theme",
		Long: `Loads a YAML or JSON theme, queries every available provider for each term
and writes the winners and alternates to <out>/<theme>. Interrupting the run
stops dispatching new terms; the manifest still lists every term.

Use --dry-run to rank without writing any image.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			theme, err := config.LoadTheme(args[0])
			if err != nil {
				return err
			}
			cfg.ApplyTheme(theme)

			base := cfg.OutputDir
			if outDir != "" {
				base = outDir
			}
			dir := filepath.Join(base, theme.Name)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			built, err := cfg.Build(ctx, config.Options{Strategy: strategy, OutputDir: dir, DryRun: dryRun})
			if err != nil {
				return err
			}
			defer built.Close()

			total := len(theme.Terms)
			var done atomic.Int32
			out := cmd.OutOrStdout()
			built.Config.OnTermDone = func(r imagepick.SelectionResult) {
				n := done.Add(1)
				if r.Empty() {
					fmt.Fprintf(out, "[%d/%d] %s: no image\n", n, total, r.Term)
					return
				}
				fmt.Fprintf(out, "[%d/%d] %s: %s (%s, %.3f)\n", n, total, r.Term, r.ChosenFilename, r.Source, r.Score)
			}

			o := imagepick.NewOrchestrator(built.Config)
			m, err := imagepick.NewBatchRunner(o, cfg.TermWorkers).Run(ctx, theme.Terms)
			if err != nil {
				return err
			}

			if manifestPath == "" {
				manifestPath = filepath.Join(dir, "manifest.json")
			}
			if err := os.MkdirAll(filepath.Dir(manifestPath), 0o755); err != nil {
				return fmt.Errorf("creating manifest directory: %w", err)
			}
			if err := m.Save(manifestPath); err != nil {
				return err
			}

			if !dryRun {
				if err := recordHistory(context.WithoutCancel(ctx), historyFile, cfg, m); err != nil {
					slog.Warn("imagepick: history not recorded", "error", err.Error())
				}
			}

			fmt.Fprintf(out, "\n%s: %d/%d terms selected, manifest %s\n", theme.Title, m.Selected(), m.Len(), manifestPath)
			if empty := m.EmptyTerms(); len(empty) > 0 {
				fmt.Fprintf(out, "no image for: %s\n", strings.Join(empty, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "base output directory (default output_dir from config)")
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest path (default <out>/<theme>/manifest.json)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "ranking strategy: heuristic or embedding")
	cmd.Flags().StringVar(&historyFile, "history", "", "history database path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "rank without writing images or history")

	return cmd
}

func recordHistory(ctx context.Context, flag string, cfg *config.Config, m *imagepick.Manifest) error {
	path, err := historyPath(flag, cfg)
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveManifest(ctx, m)
}
