package cmd

import (
	"fmt"
	"os"

	"maexport/lib/archive"
	"maexport/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <band|artist|label|release|report|user> <id>",
	Short: "Load a resource and everything reachable from it, then emit the graph as JSON on stdout.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		client := createClient(ctx)
		defer client.Close()

		arch := archive.New(client)
		root, err := arch.RootEntity(args[0], args[1])
		if err != nil {
			serviceutil.Fatal("bad export target", err)
		}

		if err := root.Load(ctx); err != nil {
			serviceutil.Fatal("load failed", err)
		}
		if err := arch.ValidateUsers(ctx); err != nil {
			serviceutil.Fatal("user validation failed", err)
		}

		out, err := arch.ExportJSON(ctx, pretty)
		if err != nil {
			serviceutil.Fatal("serialization failed", err)
		}

		printSummary(arch)
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

// printSummary writes a per-table entity count to stderr.
func printSummary(arch *archive.Archive) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stderr)
	t.AppendHeader(table.Row{"table", "entities"})
	for _, kind := range archive.ExportKinds() {
		count := len(arch.Registry().AllOf(kind))
		if count == 0 {
			continue
		}
		t.AppendRow(table.Row{string(kind), count})
	}
	t.Render()
}
