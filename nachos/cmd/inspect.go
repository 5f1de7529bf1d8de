package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"text/tabwriter"

	"github.com/fatih/structs"
	"github.com/spf13/cobra"

	"github.com/sarchlab/nachos/datarecording"
	"github.com/sarchlab/nachos/tracing"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [trace.sqlite3]",
	Short: "Print the rows of a recorded trace.",
	Long: "`inspect` queries a database written by `run --record`. The " +
		"table is either `events` or `accesses`.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		table, _ := cmd.Flags().GetString("table")
		where, _ := cmd.Flags().GetString("where")
		limit, _ := cmd.Flags().GetInt("limit")

		reader, err := datarecording.OpenReader(args[0])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		defer reader.Close()

		err = inspectTrace(cmd.Context(), reader, cmd.OutOrStdout(),
			table, datarecording.Filter{Where: where, Limit: limit})
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	flags := inspectCmd.Flags()
	flags.String("table", "events", "Table to print, events or accesses.")
	flags.String("where", "", "SQL condition that the rows must satisfy.")
	flags.Int("limit", 0, "Maximum number of rows to print.")

	rootCmd.AddCommand(inspectCmd)
}

func inspectTrace(
	ctx context.Context,
	reader *datarecording.Reader,
	out io.Writer,
	table string,
	f datarecording.Filter,
) error {
	switch table {
	case "events":
		rows, err := tracing.ReadEvents(ctx, reader, f)
		if err != nil {
			return err
		}

		return printRows(ctx, reader, out, tracing.EventTableName, rows, f)
	case "accesses":
		rows, err := tracing.ReadAccesses(ctx, reader, f)
		if err != nil {
			return err
		}

		return printRows(ctx, reader, out, tracing.AccessTableName, rows, f)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func printRows[T any](
	ctx context.Context,
	reader *datarecording.Reader,
	out io.Writer,
	table string,
	rows []T,
	f datarecording.Filter,
) error {
	total, err := reader.Count(ctx, table, f)
	if err != nil {
		return err
	}

	var sample T

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(structs.Names(sample), "\t"))

	for _, row := range rows {
		values := structs.Values(row)

		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprint(v)
		}

		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	err = tw.Flush()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%d of %d rows\n", len(rows), total)

	return nil
}
