package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/coherence/datarecording"
	"github.com/sarchlab/coherence/tracing"
)

var reportCmd = &cobra.Command{
	Use:   "report PATH",
	Short: "Summarize a recording written by run --record PATH.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(cmd.Context(), args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func report(ctx context.Context, path string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	reader := datarecording.NewReader(path)
	defer reader.Close()

	reader.MapTable(datarecording.ExecTableName, datarecording.ExecInfo{})
	reader.MapTable(tracing.AccessTableName, tracing.AccessEntry{})
	reader.MapTable(tracing.TransitionTableName, tracing.TransitionEntry{})

	if err := printExecInfo(ctx, reader, out); err != nil {
		return err
	}

	if err := printAccessCounts(ctx, reader, out); err != nil {
		return err
	}

	_, transitions, err := reader.Query(ctx, tracing.TransitionTableName,
		datarecording.QueryParams{})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "state transitions: %d\n", transitions)

	return nil
}

func printExecInfo(
	ctx context.Context,
	reader datarecording.DataReader,
	out io.Writer,
) error {
	rows, _, err := reader.Query(ctx, datarecording.ExecTableName,
		datarecording.QueryParams{})
	if err != nil {
		return err
	}

	for _, row := range rows {
		info := row.(*datarecording.ExecInfo)
		fmt.Fprintf(out, "%s: %s\n", info.Property, info.Value)
	}

	return nil
}

func printAccessCounts(
	ctx context.Context,
	reader datarecording.DataReader,
	out io.Writer,
) error {
	rows, _, err := reader.Query(ctx, tracing.AccessTableName,
		datarecording.QueryParams{OrderBy: "Cycle"})
	if err != nil {
		return err
	}

	counts := make(map[string]*tracing.AccessCount)
	total := tracing.AccessCount{}

	for _, row := range rows {
		e := row.(*tracing.AccessEntry)

		c, ok := counts[e.Controller]
		if !ok {
			c = &tracing.AccessCount{}
			counts[e.Controller] = c
		}

		countEntry(c, e)
		countEntry(&total, e)
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}

	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "cache\tread hit\tread miss\twrite hit\twrite miss\thit rate")

	for _, name := range names {
		printCount(w, name, *counts[name])
	}

	printCount(w, "total", total)

	return w.Flush()
}

func countEntry(c *tracing.AccessCount, e *tracing.AccessEntry) {
	switch {
	case e.Type == "Read" && e.Result == "Hit":
		c.ReadHit++
	case e.Type == "Read":
		c.ReadMiss++
	case e.Result == "Hit":
		c.WriteHit++
	default:
		c.WriteMiss++
	}
}
