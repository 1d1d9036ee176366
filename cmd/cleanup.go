package cmd

import (
	"errors"
	"fmt"

	"github.com/dushixiang/homedash/internal/app"
	"github.com/dushixiang/homedash/internal/config"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "立即删除超过保留时长的指标数据",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.LoadWithCli(cmd)
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
		}()

		report := a.Cleanup(cmd.Context())
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "cutoff: %s\n", report.Cutoff.Format("2006-01-02 15:04:05 MST"))
		var failed []error
		for _, result := range report.Results {
			if result.Err != nil {
				fmt.Fprintf(out, "%-13s failed: %v\n", result.Family, result.Err)
				failed = append(failed, result.Err)
				continue
			}
			fmt.Fprintf(out, "%-13s deleted %d\n", result.Family, result.Deleted)
		}
		fmt.Fprintf(out, "total deleted: %d\n", report.Total())
		return errors.Join(failed...)
	},
}

func init() {
	cleanupCmd.Flags().String("database", "", "sqlite 数据库文件路径")
}
