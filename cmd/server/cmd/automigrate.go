package cmd

import (
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/repository"
	"github.com/spf13/cobra"
)

var automigrateCmd = &cobra.Command{
	Use:   "automigrate",
	Short: "创建或更新账本表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbCfg := cfg.Database
		dbCfg.AutoMigrate = true
		if _, err := repository.Init(dbCfg); err != nil {
			return err
		}
		logger.Info("Database schema is up to date")
		return nil
	},
}
