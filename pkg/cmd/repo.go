package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/photovault/pkg/internal/repository"
)

var (
	repoCmd = &cobra.Command{
		Use:   "repo",
		Short: "Asset repository related commands",
	}

	repoListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered repository backends",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered repository backends:")
			for _, b := range repository.RegisteredBackends() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(b))
			}
		},
	}
)

// registerRepoCommands 注册仓库后端相关命令.
func registerRepoCommands() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoListCmd)
}
