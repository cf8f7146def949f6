package main

import (
	"os"

	"github.com/flightctl/gitlab-auth/internal/cli"
)

func main() {
	command := cli.NewGitLabAuthCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
