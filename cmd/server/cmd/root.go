package cmd

import (
	"fmt"
	"os"

	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/logger"
	"github.com/spf13/cobra"
)

var cfg *config.Config

// rootCmd 代表基础命令，没有子命令时直接启动服务
var rootCmd = &cobra.Command{
	Use:   "launchpad",
	Short: "轮次制代币发售服务",
	Long: `按区块推进的代币发售服务。
包含评估、拍卖、社区轮、结算以及向目标链迁移代币。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if err := logger.Init(cfg.Log); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute 将所有子命令添加到根命令并执行
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(automigrateCmd)
	rootCmd.AddCommand(mintCmd)
}
