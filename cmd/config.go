package cmd

import (
	"github.com/dushixiang/homedash/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置相关命令",
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "以 YAML 输出合并默认值、配置文件与环境变量后的最终配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithCli(cmd)
		if err != nil {
			return err
		}
		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return err
		}
		return encoder.Close()
	},
}

func init() {
	configCmd.AddCommand(configPrintCmd)
}
