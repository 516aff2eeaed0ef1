package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "posture",
	Short: "score the security posture of open source repositories",
	Long: `posture measures how an open source repository handles security:
		   its vulnerability history and fix timeliness, workflow hygiene,
		   branch protection, static analysis and release practices.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
}
