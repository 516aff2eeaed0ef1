package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oss-posture/posture/internal/configuration"
)

var setUpCmd = &cobra.Command{
	Use:   "setup",
	Short: "setup api access so we can begin scoring repositories",
	Long: `setup records which environment variables hold your github token and
		   NVD api key. Both are optional but unauthenticated requests run into
		   much lower rate limits.`,
	Args: cobra.NoArgs,
	RunE: runSetUp,
}

func runSetUp(cmd *cobra.Command, args []string) error {
	config, err := configuration.Load()
	if err != nil {
		return err
	}

	fmt.Print("\n Setting up posture...\n")

	questions := []*survey.Question{
		{
			Name: "githubTokenEnv",
			Prompt: &survey.Input{
				Message: "Environment variable holding your github token:",
				Default: config.GithubClientSettings.TokenEnv,
			},
		},
		{
			Name: "nvdApiKeyEnv",
			Prompt: &survey.Input{
				Message: "Environment variable holding your NVD api key:",
				Default: config.CveClientSettings.ApiKeyEnv,
			},
		},
	}

	answers := struct {
		GithubTokenEnv string
		NvdApiKeyEnv   string
	}{}

	if err := survey.Ask(questions, &answers); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	config.GithubClientSettings.TokenEnv = answers.GithubTokenEnv
	config.CveClientSettings.ApiKeyEnv = answers.NvdApiKeyEnv

	if err := config.Save(); err != nil {
		return err
	}

	fmt.Print(color.GreenString("\n Posture set up, please run the score command to score a repository!\n"))
	return nil
}

func init() {
	rootCmd.AddCommand(setUpCmd)
}
