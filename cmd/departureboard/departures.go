package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/departureboard/pkg/models"
	"github.com/spf13/cobra"
)

var departuresCmd = &cobra.Command{
	Use:   "departures <station_id>",
	Short: "Prints the current departure board for a stop",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepartures,
}

var (
	asJSON   bool
	attempts int
)

func init() {
	departuresCmd.Flags().BoolVar(&asJSON, "json", false, "Print the board as JSON")
	departuresCmd.Flags().IntVarP(&attempts, "attempts", "a", 0, "Override BOARD_MAX_ATTEMPTS")
}

func runDepartures(cmd *cobra.Command, args []string) error {
	stationID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if attempts > 0 {
		cfg.Board.MaxAttempts = attempts
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// keep stdout for the board itself
	log := newLogger(cfg.Logging, os.Stderr)

	agg, err := newAggregator(cfg, log)
	if err != nil {
		return err
	}

	rows, err := agg.GetDepartures(cmd.Context(), stationID)
	if err != nil {
		return err
	}

	if asJSON {
		return writeBoardJSON(cmd.OutOrStdout(), rows)
	}
	return writeBoardTable(cmd.OutOrStdout(), rows)
}

func writeBoardJSON(w io.Writer, rows []models.VehicleInfo) error {
	if rows == nil {
		rows = []models.VehicleInfo{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeBoardTable(w io.Writer, rows []models.VehicleInfo) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No departures in the next hour")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tDESTINATION\tNEXT\tTHEN")
	for _, row := range rows {
		then := "-"
		if row.HasNextNext() {
			then = strconv.Itoa(*row.NextNextMinutes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", row.Number, row.Destination, row.NextMinutes, then)
	}
	return tw.Flush()
}
