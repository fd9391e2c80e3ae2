package cmd

import (
	"context"
	"fmt"
	"os"

	"maexport/lib/configutil"
	"maexport/lib/restyutil"
	"maexport/lib/scrapers/metalarchives"
	"maexport/lib/telemetry"
	"maexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

// Config carries the moderator credentials and scraper knobs read from
// config.json5. A session cookie skips the login round-trip when present.
type Config struct {
	BaseUrl   string `json:"baseUrl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Cookie    string `json:"cookie"`
	CachePath string `json:"cachePath"`
	DumpHttp  string `json:"dumpHttp"`
}

var (
	configPath string
	debug      bool
	pretty     bool

	tel telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "maexport",
	Short: "maexport pulls moderation-level data out of the metal encyclopaedia into a single JSON document.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(debug)
		// exporting spans is optional for a CLI run; no telemetry.json5
		// just means no exporter
		t, err := telemetry.SetupFromEnv(cmd.Context(), "maexport")
		if err == nil {
			tel = t
			telemetry.InstrumentPerfStats(cmd.Context())
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		tel.Shutdown(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "path to the credentials/config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&pretty, "pretty", "p", false, "indent the emitted JSON")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// createClient builds an authenticated site client from the config file.
func createClient(ctx context.Context) *metalarchives.Client {
	cfg, err := configutil.ReadConfig[Config](configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	client, err := metalarchives.NewClient(ctx, metalarchives.ClientOptions{
		BaseUrl:   cfg.BaseUrl,
		CachePath: cfg.CachePath,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize site client", err)
	}
	if cfg.DumpHttp != "" {
		restyutil.DumpClient(client.Http, restyutil.NewFilesystemOutput(cfg.DumpHttp))
	}

	if cfg.Cookie != "" {
		client.SetSessionCookies(metalarchives.ParseSessionCookie(cfg.Cookie))
		if err := client.VerifyModerator(ctx); err != nil {
			serviceutil.Fatal("session cookie rejected", err)
		}
		return client
	}

	if err := client.Login(ctx, cfg.Username, cfg.Password); err != nil {
		serviceutil.Fatal("could not authorise user", err)
	}
	return client
}
