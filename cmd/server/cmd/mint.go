package cmd

import (
	"context"
	"fmt"

	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// mintCmd 向账户发放资产，用于测试网
var mintCmd = &cobra.Command{
	Use:   "mint [asset] [account] [amount]",
	Short: "向账户发放资产",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[2], err)
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		engine := logic.NewEngine(deps.store, deps.oracle, xcm.NewMemoryTransport(), deps.chain.GetClock(),
			deps.chain.GetRandomness(), cfg.Engine, cfg.Migration)
		ctx := context.Background()
		if err := engine.RegisterAssets(ctx, cfg.Oracle.Assets); err != nil {
			return err
		}
		if err := engine.Mint(ctx, args[0], args[1], amount); err != nil {
			return err
		}
		logger.Info("Minted %s %s to %s", amount, args[0], args[1])
		return nil
	},
}
