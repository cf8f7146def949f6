package cli

import (
	"github.com/spf13/cobra"
)

// NewGitLabAuthCommand returns the gitlab-auth root command. No subcommand
// accepts credentials.
func NewGitLabAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "gitlab-auth authenticates users with GitLab personal access tokens and maps their groups to roles.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
	cmd.AddCommand(NewCmdServe())
	cmd.AddCommand(NewCmdConfig())
	cmd.AddCommand(NewCmdVersion())
	return cmd
}
