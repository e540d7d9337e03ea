package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/exiletools/runtracker/internal/config"
	"github.com/exiletools/runtracker/internal/storage"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List completed runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(context.Background(), runsLimit)
		if err != nil {
			return err
		}

		if runsJSON {
			return json.NewEncoder(os.Stdout).Encode(runs)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAREA\tSTART\tEND\tXP\tKILLS")
		for _, run := range runs {
			name := ""
			if ai, err := store.GetAreaInfo(context.Background(), run.ID); err == nil {
				name = ai.Name
			}
			xp := "-"
			if run.XP != nil {
				xp = fmt.Sprintf("%d", *run.XP)
			}
			kills := "-"
			if run.Kills != nil {
				kills = fmt.Sprintf("%d", *run.Kills)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				run.ID, name,
				run.FirstEvent.Format(storage.TimeFormat),
				run.LastEvent.Format(storage.TimeFormat),
				xp, kills)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "maximum number of runs to show")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "output JSON")
	rootCmd.AddCommand(runsCmd)
}
