package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"igharvest/pkg/auth"
	"igharvest/pkg/ui"
)

var (
	importAccount   string
	importUserAgent string
	assumeYes       bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored browser sessions",
	Long: `Manage the Instagram sessions igharvest logs in with.

A session is a cookie export of a logged-in browser. Imported sessions are
stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

A run can also read a cookie file directly with data.cookie_file or
--cookie-file. Never share your cookie files!`,
}

// importCmd represents the auth import command
var importCmd = &cobra.Command{
	Use:   "import <cookies.json>",
	Short: "Store the session from a cookie export",
	Long: `Store the session from a cookie export file.

The file must be JSON, either an array of cookies or an object with a
"cookies" array, and must contain the sessionid cookie.
Run 'igharvest auth guide' for how to export it.`,
	Example: `  # Import a cookie export under the name "main"
  igharvest auth import ~/Downloads/cookies.json --account main`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthImport,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long:  `List stored sessions with their cookie values masked.`,
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

// deleteCmd represents the auth delete command
var deleteCmd = &cobra.Command{
	Use:     "delete <account>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored session",
	Args:    cobra.ExactArgs(1),
	RunE:    runAuthDelete,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to export your Instagram cookies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowCookieExportGuide()
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(importCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(deleteCmd)
	authCmd.AddCommand(guideCmd)

	importCmd.Flags().StringVarP(&importAccount, "account", "a", "", "name to store the session under (required)")
	importCmd.Flags().StringVar(&importUserAgent, "user-agent", "", "user agent of the browser the cookies come from")
	_ = importCmd.MarkFlagRequired("account")

	deleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func runAuthImport(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	account, err := manager.Import(args[0], strings.TrimSpace(importAccount), importUserAgent)
	if err != nil {
		ui.PrintError("Failed to import cookies", err.Error())
		fmt.Println("\nRun 'igharvest auth guide' for how to export them.")
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Session stored: %s (%d cookies)", account.Username, len(account.Cookies)))
	fmt.Println("\nUse it with:")
	fmt.Printf("  igharvest run --account %s\n", account.Username)
	fmt.Println("or set data.account in your configuration file.")
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		return err
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'igharvest auth import' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Sessions")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Account: %s\n", i+1, sanitized.Username)
		for _, c := range sanitized.Cookies {
			if c.Name == auth.SessionCookie || c.Name == auth.CSRFCookie {
				fmt.Printf("   %s: %s\n", c.Name, c.Value)
			}
		}
		fmt.Printf("   Cookies: %d\n", len(sanitized.Cookies))
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	username := args[0]
	if !assumeYes {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Remove session '%s'? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	if err := manager.Delete(username); err != nil {
		ui.PrintError("Failed to remove session", err.Error())
		return err
	}
	ui.PrintSuccess("Session removed: " + username)
	return nil
}
