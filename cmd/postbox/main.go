package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "postbox",
	Short: "Email messaging service",
	Long: `Postbox stores, schedules and delivers emails: single messages, bulk
notifications fanned out to every user, user feedback to the operator inbox,
and account emails.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, sweepCmd)
}
