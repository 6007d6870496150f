package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igharvest/pkg/auth"
	"igharvest/pkg/config"
	"igharvest/pkg/guard"
	"igharvest/pkg/instagram"
	"igharvest/pkg/logger"
	"igharvest/pkg/scraper"
	"igharvest/pkg/ui"
	"igharvest/pkg/ui/tui"
)

var (
	// Run command flags
	dryRun      bool
	profileName string
	numPosts    int
	useTUI      bool
	download    bool
	headless    bool
	outputDir   string
	cookieFile  string
	accountName string
	controlURL  string
	debugTabs   bool
	concurrent  int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest the configured profiles",
	Long: `Harvest every profile listed in the configuration, one after the other.

For each profile igharvest opens the profile page, collects post links (or
reuses the cached list from an earlier run), skips posts already recorded in
the metadata store and scrapes the rest in batches of tabs. Progress is saved
as it goes: stopping with Ctrl+C and running again picks up where it left off.

The browser session comes from a cookie export, either data.cookie_file /
--cookie-file or an account stored with 'igharvest auth import'.`,
	Example: `  # Harvest the profiles of a config file
  igharvest run --config igharvest.toml

  # Only one profile, with the dashboard
  igharvest run --profile natgeo --tui

  # See how much work is left without opening any post
  igharvest run --dry-run

  # Also download the images of harvested posts
  igharvest run --download --concurrent 4`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "collect candidates and report outstanding posts without opening them")
	runCmd.Flags().StringVarP(&profileName, "profile", "p", "", "harvest only this profile")
	runCmd.Flags().IntVarP(&numPosts, "num-posts", "n", 0, "number of posts to collect per profile")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "show the full-screen dashboard")
	runCmd.Flags().BoolVar(&download, "download", false, "download the media of harvested posts")
	runCmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (data.output_dir)")
	runCmd.Flags().StringVar(&cookieFile, "cookie-file", "", "cookie export to log in with")
	runCmd.Flags().StringVarP(&accountName, "account", "a", "", "stored account to log in with")
	runCmd.Flags().StringVar(&controlURL, "control-url", "", "attach to a running Chrome at this DevTools URL")
	runCmd.Flags().BoolVar(&debugTabs, "debug", false, "leave post tabs open after scraping")
	runCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent media downloads")
}

// runFlags returns the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects
func runFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed

	if profile := instagram.SanitizeUsername(profileName); profile != "" {
		flags["profile"] = profile
	}
	if numPosts > 0 {
		flags["num-posts"] = numPosts
	}
	if set("headless") {
		flags["headless"] = headless
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if cookieFile != "" {
		flags["cookie-file"] = cookieFile
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	if controlURL != "" {
		flags["control-url"] = controlURL
	}
	if debugTabs {
		flags["debug"] = true
	}
	if download {
		flags["download"] = true
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, runFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	if useTUI && !term.IsTerminal(int(os.Stdout.Fd())) {
		ui.PrintWarning("Standard output is not a terminal, showing progress bars instead of the dashboard")
		useTUI = false
	}
	if useTUI && cfg.Logging.File == "" {
		// the dashboard owns the screen
		cfg.Logging.Level = "error"
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		return err
	}
	logger.WithFields(map[string]interface{}{
		"version":  version,
		"profiles": len(cfg.Targets()),
		"dry_run":  dryRun,
	}).Info("igharvest starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := ui.NewNotifierFor(cfg.Notifications)

	var credentials *auth.Manager
	if cfg.Data.CookieFile == "" {
		credentials, err = auth.NewManager()
		if err != nil {
			ui.PrintError("Failed to initialize credential manager", err.Error())
			return err
		}
	}

	var dashboard *tui.TUI
	if useTUI {
		dashboard = tui.NewTUI().WithAlerter(notifier)
	}

	var interrupter guard.Interrupter = guard.LogInterrupter{}
	switch {
	case cfg.Browser.InteractiveGuard && dashboard != nil:
		interrupter = dashboard
	case cfg.Browser.InteractiveGuard:
		interrupter = guard.NewPromptInterrupter(notifier)
	}

	session := scraper.NewSession(cfg, scraper.SessionOptions{
		Credentials: credentials,
		Interrupter: interrupter,
	})
	opts := scraper.PipelineOptions{
		DryRun:   dryRun,
		Notifier: notifier,
	}

	var tuiDone chan error
	if dashboard != nil {
		opts.TUI = dashboard
		tuiDone = make(chan error, 1)
		go func() {
			// quitting the dashboard stops the run
			tuiDone <- dashboard.Start()
			stop()
		}()
	} else {
		for _, t := range cfg.Targets() {
			ui.PrintInfo("Target profile", fmt.Sprintf("@%s (%d posts)", t.Name, t.NumPosts))
		}
	}

	results, err := scraper.NewPipeline(cfg, session, opts).Run(ctx)

	if dashboard != nil {
		dashboard.Stop()
		if tuiErr := <-tuiDone; tuiErr != nil {
			logger.WithError(tuiErr).Error("Dashboard failed")
		}
	}

	printResults(results)

	switch {
	case err == nil:
		ui.PrintSuccess("Harvest finished")
		return nil
	case errors.Is(err, context.Canceled):
		// a stop request is a controlled end; progress is already saved
		logger.Info("Run stopped, progress saved")
		ui.PrintWarning("Stopped, progress saved. Run again to resume.")
		return nil
	default:
		logger.WithError(err).Error("Harvest failed")
		return err
	}
}

func printResults(results []scraper.ProfileResult) {
	for _, r := range results {
		status := ui.Green("ok")
		if r.Err != nil {
			status = ui.Red(r.Err.Error())
		}
		line := fmt.Sprintf("%d harvested, %d skipped, %d outstanding at start (%s)",
			len(r.Report.Succeeded), len(r.Report.Skipped), r.Outstanding, status)
		if r.Media.Saved+r.Media.Cached+r.Media.Failed > 0 {
			line += fmt.Sprintf("; media %d saved, %d present, %d failed", r.Media.Saved, r.Media.Cached, r.Media.Failed)
		}
		ui.PrintInfo("@"+r.Profile, line)
	}
}
