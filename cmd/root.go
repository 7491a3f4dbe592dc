package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the resender application
var rootCmd = &cobra.Command{
	Use:   "resender",
	Short: "Resends unanswered job applications from your Gmail sent folder",
	Long: `resender searches your Gmail sent folder for job applications, skips
recipients that are excluded or were already contacted too often, and resends
the rest with a short follow-up note and the original attachments.

It can run as:
  - A standalone CLI tool (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "resender version %s\n" .Version}}`)

	// If no subcommand is provided, run the resend command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "resend")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newResendCmd())
	rootCmd.AddCommand(newExcludeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
