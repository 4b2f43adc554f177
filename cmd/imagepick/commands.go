package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-imagepick"
	"github.com/anatolykoptev/go-imagepick/internal/history"
)

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show which providers will be queried",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tENABLED\tSTATUS")
			for _, s := range cfg.ProviderStatuses() {
				status := "ready"
				switch {
				case !s.Enabled:
					status = "disabled"
				case !s.Available:
					status = "missing credential"
				}
				fmt.Fprintf(w, "%s\t%t\t%s\n", s.ID, s.Enabled, status)
			}
			return w.Flush()
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Run the image validator on local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v := &imagepick.Validator{
				MaxBytes:            cfg.MaxBytes,
				MinDimension:        cfg.MinDimension,
				Blocklist:           cfg.Blocklist,
				ExtraBlockedDomains: cfg.ExtraBlockedDomains,
			}
			if v.Blocklist == nil {
				v.Blocklist = imagepick.DefaultBlocklist
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tVERDICT")
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(w, "%s\terror: %v\n", path, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\n", path, v.Validate(data, imagepick.Candidate{URL: "file://" + path}))
			}
			return w.Flush()
		},
	}
}

func historyCmd() *cobra.Command {
	var (
		historyFile string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the selections of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path, err := historyPath(historyFile, cfg)
			if err != nil {
				return err
			}
			store, err := history.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if len(args) == 1 {
				sel, err := store.Selections(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "TERM\tSTATE\tFILE\tSOURCE\tSCORE")
				for _, r := range sel {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\n", r.Term, r.State, r.ChosenFilename, r.Source, r.Score)
				}
				return w.Flush()
			}

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "RUN\tCREATED\tSTRATEGY\tSELECTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\n", r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Strategy, r.Selected, r.Terms)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&historyFile, "history", "", "history database path")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to list")
	return cmd
}
