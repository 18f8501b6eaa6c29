package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vkharvest/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage VK access tokens",
	Long: `Manage stored VK access tokens securely.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable VKHARVEST_TOKEN (read-only fallback)

Never share your tokens or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store a VK access token securely",
	Long: `Store a VK access token in the system keychain or encrypted file.

The token is read from an interactive prompt without echoing. When no
profile name is given the token is stored under the "default" profile.`,
	Example: `  # Store the default token
  vkharvest auth login

  # Store a token under a named profile
  vkharvest auth login archive-bot`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored token",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored token profiles",
	Long:  `List all stored token profiles with sanitized token previews.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize token manager: %v\n", err)
		os.Exit(1)
	}

	profile := auth.DefaultProfile
	if len(args) > 0 {
		profile = args[0]
	}

	fmt.Printf("Access token for profile %q (input hidden): ", profile)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read token: %v\n", err)
		os.Exit(1)
	}

	value := strings.TrimSpace(string(raw))
	if value == "" {
		fmt.Fprintln(os.Stderr, "Empty token, nothing stored")
		os.Exit(1)
	}

	token := &auth.Token{
		Name:  profile,
		Value: value,
	}
	if err := manager.Store(token); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to store token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Token stored for profile %q\n", profile)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize token manager: %v\n", err)
		os.Exit(1)
	}

	profile := auth.DefaultProfile
	if len(args) > 0 {
		profile = args[0]
	}

	if err := manager.Delete(profile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to remove token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Token removed for profile %q\n", profile)
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize token manager: %v\n", err)
		os.Exit(1)
	}

	tokens, err := manager.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list tokens: %v\n", err)
		os.Exit(1)
	}

	if len(tokens) == 0 {
		fmt.Println("No stored tokens. Use 'vkharvest auth login' to store one.")
		return
	}

	for _, token := range tokens {
		fmt.Printf("  %-16s %s  (updated %s)\n",
			token.Name, maskToken(token.Value), token.LastModified.Format(time.DateOnly))
	}
}

// maskToken shows just enough of a token to recognize it
func maskToken(value string) string {
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + strings.Repeat("*", 8) + value[len(value)-4:]
}
