package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-imagepick/internal/config"
)

var (
	configFile string
	verbose    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "imagepick",
		Short: "Pick one illustrative image per term from several image providers",
		Long: `imagepick searches Unsplash, Pexels, Pixabay, Wikipedia and Wikimedia
Commons for every term of a theme, validates the candidates, ranks them and
keeps the best one. The outcome of a run is written as a JSON manifest.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.imagepick/config.toml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(runCmd())
	root.AddCommand(providersCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(historyCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// historyPath resolves flag, then config, then ~/.imagepick/history.db.
func historyPath(flag string, cfg *config.Config) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.HistoryPath != "" {
		return cfg.HistoryPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".imagepick", "history.db"), nil
}
