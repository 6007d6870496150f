package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igharvest/pkg/config"
	"igharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igharvest configuration files.

Configuration is assembled from, lowest priority first:
  - Default values
  - Configuration file (.toml, .yaml or .yml)
  - .env files and IGHARVEST_* environment variables
  - Command line flags`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Long: `Write a configuration file with every option at its default value.

The file is created as 'igharvest.toml' in the current directory unless a
different path is given with --config. A .yaml extension writes YAML.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration a run would use, after defaults, the config file,
environment variables and .env files are merged. Data paths are shown
expanded for each target profile.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file.

This command checks:
  - File syntax
  - Value types and ranges
  - That at least one target profile is set
  - That a login session is configured
  - That the output and log directories can be created`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "igharvest.toml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	cfg := config.DefaultConfig()
	cfg.Main.TargetProfile = "instagram"
	cfg.Data.CookieFile = "cookies.json"

	if err := cfg.Save(configPath); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set main.target_profile (or main.target_profiles) to the profiles to harvest")
	fmt.Println("2. Export your Instagram cookies to data.cookie_file, or run 'igharvest auth import'")
	fmt.Printf("3. Run 'igharvest config validate --config %s'\n", configPath)
	fmt.Printf("4. Start harvesting with 'igharvest run --config %s'\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return err
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println()
	ui.PrintHighlight("Per-profile paths")
	for _, t := range cfg.Targets() {
		p := cfg.ForProfile(t)
		fmt.Printf("\n@%s (%d posts)\n", t.Name, p.Main.NumPosts)
		fmt.Printf("  candidates: %s\n", p.Data.PostsPath)
		fmt.Printf("  metadata:   %s\n", p.Data.MetadataPath)
		fmt.Printf("  skipped:    %s\n", p.Data.SkippedPath)
		fmt.Printf("  staging:    %s\n", p.Data.TmpPath)
		fmt.Printf("  manifest:   %s\n", p.Data.ManifestPath)
		fmt.Printf("  media:      %s\n", p.Data.MediaDir)
	}

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (IGHARVEST_*) and .env files")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in the default locations)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	var warnings, problems []string

	if cfg.Data.CookieFile == "" && cfg.Data.Account == "" {
		warnings = append(warnings, "no data.cookie_file or data.account; the first stored account will be used")
	}
	if cfg.Data.CookieFile != "" {
		if _, err := os.Stat(cfg.Data.CookieFile); err != nil {
			problems = append(problems, fmt.Sprintf("cookie file %s: %v", cfg.Data.CookieFile, err))
		}
	}

	if err := os.MkdirAll(cfg.Data.OutputDir, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.Main.RateLimitSecondsMax == 0 {
		warnings = append(warnings, "main.rate_limit_seconds_max is 0; batches run back to back")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	for _, t := range cfg.Targets() {
		fmt.Printf("  Profile: @%s (%d posts)\n", t.Name, t.NumPosts)
	}
	fmt.Printf("  Output directory: %s\n", cfg.Data.OutputDir)
	fmt.Printf("  Batch size: %d (randomized: %v)\n", cfg.Main.BatchSize, cfg.Main.RandomizeBatch)
	fmt.Printf("  Pause between batches: %.1fs-%.1fs\n", cfg.Main.RateLimitSecondsMin, cfg.Main.RateLimitSecondsMax)
	fmt.Printf("  Media downloads: %v\n", cfg.Download.Enabled)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
