package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegraph/internal/config"
	"github.com/nao1215/sitegraph/internal/database"
	"github.com/nao1215/sitegraph/internal/graph"
)

// shortIDLen is the run ID prefix shown in listings.
const shortIDLen = 8

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored crawl runs or replay one run's log",
		Long: `Runs reads crawls stored with 'sitegraph crawl --db'.

Without arguments it lists every stored run, newest first.
With a run ID (or a unique prefix of one) it prints that run's crawl log
in the same format the crawl wrote it.

Examples:
  # List stored runs
  sitegraph runs

  # Replay a run's log
  sitegraph runs 3f2a9c1e

  # Delete a run
  sitegraph runs --delete 3f2a9c1e`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunsCmd,
	}

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Database directory")
	cmd.Flags().Bool("delete", false,
		"Delete the given run instead of printing it")
	cmd.Flags().BoolP("json", "j", false,
		"List runs as JSON")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	deleteRun, err := cmd.Flags().GetBool("delete")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	if deleteRun && len(args) == 0 {
		return errors.New("--delete requires a run ID")
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database (run 'sitegraph crawl --db' first): %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := db.ListRuns(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printRunsJSON(out, runs)
		}
		printRuns(out, runs)
		return nil
	}

	run, err := db.GetRun(ctx, args[0])
	if err != nil {
		return err
	}

	if deleteRun {
		if err := db.DeleteRun(ctx, run.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", run.ID)
		return nil
	}

	records, err := db.Vertices(ctx, run.ID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := io.WriteString(out, graph.Format(rec)); err != nil {
			return err
		}
	}
	return nil
}

// printRuns writes the run table.
func printRuns(out io.Writer, runs []database.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs found in the database.")
		fmt.Fprintln(out, "\nUse 'sitegraph crawl --db <seed-url>' to store a run.")
		return
	}

	fmt.Fprintf(out, "Stored runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-9s  %-19s  %7s  %6s  %s\n",
		"ID", "Status", "Started", "Pages", "Failed", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-8s  %-9s  %-19s  %7d  %6d  %s\n",
			shortID(r.ID),
			r.Status,
			r.StartedAt.Local().Format(time.DateTime),
			r.Totals.Recorded,
			r.Totals.FailedFetches,
			r.Seed,
		)
	}
	fmt.Fprintln(out, "\nUse 'sitegraph runs <id>' to print a run's crawl log.")
}

// runJSON is the JSON form of a stored run.
type runJSON struct {
	ID            string     `json:"id"`
	Seed          string     `json:"seed"`
	BasePath      string     `json:"basePath"`
	Workers       int        `json:"workers"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	Claimed       int        `json:"claimed"`
	Recorded      int        `json:"recorded"`
	FailedFetches int        `json:"failedFetches"`
	Edges         int        `json:"edges"`
	ElapsedMS     int64      `json:"elapsedMs"`
}

// printRunsJSON writes runs as an indented JSON array.
func printRunsJSON(out io.Writer, runs []database.Run) error {
	list := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		item := runJSON{
			ID:            r.ID,
			Seed:          r.Seed,
			BasePath:      r.BasePath,
			Workers:       r.Workers,
			Status:        string(r.Status),
			StartedAt:     r.StartedAt,
			Claimed:       r.Totals.Claimed,
			Recorded:      r.Totals.Recorded,
			FailedFetches: r.Totals.FailedFetches,
			Edges:         r.Totals.Edges,
			ElapsedMS:     r.Totals.Elapsed.Milliseconds(),
		}
		if !r.FinishedAt.IsZero() {
			finished := r.FinishedAt
			item.FinishedAt = &finished
		}
		list = append(list, item)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}
