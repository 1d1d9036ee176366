package cmd

import (
	"fmt"

	"github.com/dushixiang/homedash/internal/app"

	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "管理 homedash 系统服务",
}

func serviceAction(use, short string, action func(m *app.ServiceManager) error, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newServiceManager(cmd)
			if err != nil {
				return err
			}
			if err := action(m); err != nil {
				return err
			}
			if done != "" {
				fmt.Fprintln(cmd.OutOrStdout(), done)
			}
			return nil
		},
	}
}

func newServiceManager(cmd *cobra.Command) (*app.ServiceManager, error) {
	configFile, _ := cmd.Flags().GetString("config")
	return app.NewServiceManager(configFile)
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看服务状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newServiceManager(cmd)
		if err != nil {
			return err
		}
		status, err := m.Status()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(
		serviceAction("install", "安装为系统服务", (*app.ServiceManager).Install, "服务已安装"),
		serviceAction("uninstall", "卸载系统服务", (*app.ServiceManager).Uninstall, "服务已卸载"),
		serviceAction("start", "启动服务", (*app.ServiceManager).Start, "服务已启动"),
		serviceAction("stop", "停止服务", (*app.ServiceManager).Stop, "服务已停止"),
		serviceAction("restart", "重启服务", (*app.ServiceManager).Restart, "服务已重启"),
		serviceAction("run", "由服务管理器调用，运行服务", (*app.ServiceManager).Run, ""),
		serviceStatusCmd,
	)
}
