package cmd

import (
	"fmt"

	"maexport/lib/archive"
	"maexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Export the site's blacklist of banned bands as JSON on stdout.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		client := createClient(ctx)
		defer client.Close()

		arch := archive.New(client)
		out, err := arch.BlacklistJSON(ctx, pretty)
		if err != nil {
			serviceutil.Fatal("blacklist export failed", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(blacklistCmd)
}
