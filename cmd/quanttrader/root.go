package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "quanttrader",
		Short:         "Multi-timeframe signal netting trader for Bybit linear perpetuals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "配置文件路径")

	root.AddCommand(
		newRunCmd(&configPath),
		newValidateCmd(&configPath),
		newSignalsCmd(&configPath),
	)
	return root
}
