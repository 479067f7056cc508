package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"promptassist/internal/store"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the augmentation history",
	}
	cmd.AddCommand(a.historyListCmd(), a.historyClearCmd())
	return cmd
}

func (a *app) openHistory() (*store.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Storage.HistoryPath, cfg.Storage.HistoryMaxEntries, quietLogger())
}

// historyRecord is the JSON shape of one entry.
type historyRecord struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Query     string `json:"query"`
	Result    string `json:"result"`
}

func (a *app) historyListCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent augmentations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.openHistory()
			if err != nil {
				return err
			}
			defer h.Close()

			entries, err := h.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if asJSON {
				records := make([]historyRecord, len(entries))
				for i, e := range entries {
					records[i] = historyRecord{ID: e.ID, Timestamp: e.Timestamp(), Query: e.Query, Result: e.Result}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No history.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %s\n", e.Timestamp(), oneLine(e.Query, 70))
				fmt.Fprintf(out, "    -> %s\n", oneLine(e.Result, 70))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func (a *app) historyClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear history without --yes")
			}
			h, err := a.openHistory()
			if err != nil {
				return err
			}
			defer h.Close()

			n, err := h.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}
