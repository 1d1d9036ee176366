package cmd

import (
	"github.com/dushixiang/homedash/internal/app"
	"github.com/dushixiang/homedash/internal/config"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动指标采集调度与 HTTP 服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithCli(cmd)
		if err != nil {
			return err
		}
		return app.RunForeground(cfg)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP 监听地址，例如 0.0.0.0:3000")
	serveCmd.Flags().String("database", "", "sqlite 数据库文件路径")
}
