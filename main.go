package main

import (
	"fmt"

	"github.com/oss-posture/posture/cmd"
	cache "github.com/oss-posture/posture/internal/caching"
	client "github.com/oss-posture/posture/internal/clients"
	"github.com/oss-posture/posture/internal/configuration"
	scoreservice "github.com/oss-posture/posture/internal/services/scoreService"
	"github.com/oss-posture/posture/internal/vulnerability"
)

func main() {

	cacheInstance := cache.Cache{}
	config, err := configuration.Load()
	if err != nil {
		fmt.Printf("error starting command line: %s", err.Error())
		return
	}

	githubClient, err := client.NewGithubClient(config, &cacheInstance)
	if err != nil {
		fmt.Printf("error starting command line: %s", err.Error())
		return
	}

	cveClient, err := client.NewCveClient(config, &cacheInstance)
	if err != nil {
		fmt.Printf("error starting command line: %s", err.Error())
		return
	}

	bountyClient := client.NewBountyClient(config)

	resolver := vulnerability.NewResolver(cveClient, githubClient, bountyClient,
		vulnerability.DefaultPolicy(), &cacheInstance)
	scoreService := scoreservice.NewScoreService(githubClient, resolver)

	// cant DI directly into the command so we use a setter
	cmd.SetScoreService(&scoreService)
	cmd.Execute()
}
