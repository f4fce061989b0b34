package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	kv "github.com/yeisme/photovault/pkg/internal/storage/kv"
)

var (
	docstoreCmd = &cobra.Command{
		Use:     "docstore",
		Short:   "Document store related commands",
		Aliases: []string{"kv"},
	}

	docstoreListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered document store engines",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered document store engines:")
			for _, t := range kv.GetRegisteredEngines() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}
)

// registerDocStoreCommands 注册文档存储相关命令.
func registerDocStoreCommands() {
	rootCmd.AddCommand(docstoreCmd)
	docstoreCmd.AddCommand(docstoreListCmd)
}
