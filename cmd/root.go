package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "homedash",
	Short:         "Homelab dashboard metrics collector",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute 执行命令行
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "配置文件路径（yaml），为空时只使用默认值与环境变量")

	rootCmd.AddCommand(serveCmd, cleanupCmd, serviceCmd, configCmd)
}
