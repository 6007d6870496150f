package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"igharvest/pkg/checkpoint"
	"igharvest/pkg/config"
	"igharvest/pkg/logger"
	"igharvest/pkg/ui"
	"igharvest/pkg/urlstore"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show harvest progress per profile",
	Long: `Show, for every configured profile, how many posts were found, how many
are already recorded and what the last run did. Nothing is opened or changed.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	logger.SetLogger(logger.NewNopLogger())

	for _, t := range cfg.Targets() {
		p := cfg.ForProfile(t)
		ui.PrintHighlight("@" + t.Name)

		candidates, cached, err := urlstore.LoadCandidates(p.Data.PostsPath)
		if err != nil {
			ui.PrintError("  Candidates unreadable", err.Error())
			continue
		}
		processed, err := urlstore.LoadProcessed(p.Data.MetadataPath)
		if err != nil {
			ui.PrintError("  Metadata unreadable", err.Error())
			continue
		}

		if cached {
			outstanding := urlstore.Outstanding(candidates, processed)
			ui.PrintInfo("  Candidates", fmt.Sprintf("%d (%d outstanding)", len(candidates), len(outstanding)))
		} else {
			ui.PrintInfo("  Candidates", "not collected yet")
		}
		ui.PrintInfo("  Recorded", fmt.Sprintf("%d posts", len(processed)))

		manifests := checkpoint.NewManager(p.Data.ManifestPath)
		if !manifests.Exists() {
			ui.PrintInfo("  Last run", "none")
			fmt.Println()
			continue
		}
		info, err := manifests.Info()
		if err != nil || info == nil {
			ui.PrintError("  Run manifest unreadable", fmt.Sprint(err))
			continue
		}

		age, _ := info["age"].(time.Duration)
		ui.PrintInfo("  Last run", fmt.Sprintf("%v, %v harvested, %v skipped, updated %s ago",
			info["status"], info["succeeded"], info["skipped"], age.Round(time.Second)))
		if n, _ := info["violations"].(int); n > 0 {
			ui.PrintWarning(fmt.Sprintf("  Guard stopped the last run %d times", n))
		}
		ui.PrintInfo("  Run ID", fmt.Sprint(info["run_id"]))
		fmt.Println()
	}
	return nil
}
