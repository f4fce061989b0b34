// Package cmd contains the command line applications for the project.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// configPath 配置文件路径，空则走默认搜索路径.
	configPath string

	// debug 额外输出 viper 内部状态.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "photovault",
		Short: "A command line tool for managing a photo and video asset catalog",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print extra debug output")

	registerConfigsCommands()
	registerRepoCommands()
	registerDBCommands()
	registerDocStoreCommands()
	registerCatalogCommands()
	registerAgentCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
