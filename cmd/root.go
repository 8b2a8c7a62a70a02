package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the draftbox application
var rootCmd = &cobra.Command{
	Use:   "draftbox",
	Short: "Signs in to Gmail and creates email drafts",
	Long: `draftbox signs in to a Google account with OAuth 2.0 and PKCE and creates
Gmail drafts on its behalf.

It can run as:
  - An MCP (Model Context Protocol) server over stdio (serve)
  - A one-shot command that signs in and creates a single draft (draft)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is fine; the environment may already be set.
		_ = godotenv.Load(envFile)
	},
}

// version will be set by main
var version = "dev"

var envFile string

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "draftbox version %s\n" .Version}}`)

	// If no subcommand is provided, run the MCP server
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File to load GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET from")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDraftCmd())
	rootCmd.AddCommand(newAuthURLCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
