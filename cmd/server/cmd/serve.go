package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/launchpad/internal/chain"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/monitor"
	"github.com/blues/launchpad/internal/oracle"
	"github.com/blues/launchpad/internal/repository"
	"github.com/blues/launchpad/internal/router"
	"github.com/blues/launchpad/internal/scheduler"
	"github.com/blues/launchpad/internal/store"
	"github.com/blues/launchpad/internal/task"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务、出块调度和后台任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

// deps 服务依赖
type deps struct {
	store  store.Store
	oracle *oracle.Client
	chain  *chain.Manager
	redis  *redis.Client
}

// Close 释放依赖持有的连接
func (d *deps) Close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logger.Error("Failed to close redis client: %v", err)
		}
	}
	if err := d.chain.Close(); err != nil {
		logger.Error("Failed to close chain manager: %v", err)
	}
}

// buildDeps 按配置初始化存储、链和价格来源
func buildDeps() (*deps, error) {
	d := &deps{}

	// 初始化存储
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("Using in-memory ledger, state is lost on restart")
		d.store = store.NewMemoryStore()
	case "", "postgres":
		db, err := repository.Init(cfg.Database)
		if err != nil {
			return nil, err
		}
		d.store = repository.NewLedgerStore(db)
	default:
		return nil, fmt.Errorf("unsupported database driver %s, supported types: postgres, memory", cfg.Database.Driver)
	}

	// 初始化区块时钟
	chainManager, err := chain.NewManager(cfg.Chain)
	if err != nil {
		return nil, err
	}
	d.chain = chainManager

	// 初始化价格来源
	decimals := make(map[string]uint8, len(cfg.Oracle.Assets))
	prices := make(map[string]decimal.Decimal, len(cfg.Oracle.Assets))
	for _, asset := range cfg.Oracle.Assets {
		decimals[asset.ID] = asset.Decimals
		prices[asset.ID] = asset.Price
	}

	var provider oracle.PriceProvider
	switch cfg.Oracle.Source {
	case "", "static":
		provider = oracle.NewStaticProvider(prices)
	case "redis":
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.redis.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		provider = oracle.NewRedisProvider(d.redis, cfg.Oracle.RedisKey)
	default:
		d.Close()
		return nil, fmt.Errorf("unsupported oracle source %s, supported types: static, redis", cfg.Oracle.Source)
	}
	d.oracle = oracle.NewClient(provider, decimals, cfg.Engine.UsdDecimals)

	return d, nil
}

func serve() error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	// 跨链消息通道，未配置 kafka 时使用内存通道
	var transport xcm.Transport
	var responses *monitor.ResponseMonitor
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaTransport := xcm.NewKafkaTransport(cfg.Kafka.Brokers, cfg.Kafka.OutboundTopic)
		defer kafkaTransport.Close()
		transport = kafkaTransport
	} else {
		logger.Warn("No kafka brokers configured, outbound xcm messages stay in memory")
		transport = xcm.NewMemoryTransport()
	}

	engine := logic.NewEngine(d.store, d.oracle, transport, d.chain.GetClock(), d.chain.GetRandomness(), cfg.Engine, cfg.Migration)
	if err := engine.RegisterAssets(context.Background(), cfg.Oracle.Assets); err != nil {
		return fmt.Errorf("failed to register assets: %w", err)
	}

	// 从上次处理到的区块继续，不低于配置的起始高度
	last, err := engine.LastBlock(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load block height: %w", err)
	}
	d.chain.GetClock().AdvanceTo(last)
	logger.Info("Resuming at block %d", d.chain.GetClock().BlockNumber())

	if len(cfg.Kafka.Brokers) > 0 {
		responses, err = monitor.NewResponseMonitor(cfg.Kafka, engine)
		if err != nil {
			return err
		}
		responses.Start()
		defer responses.Stop()
	}

	// 启动出块调度和后台任务
	blocks := scheduler.NewManager(engine, d.chain.GetClock(), cfg.Chain)
	blocks.Start()
	defer blocks.Stop()

	tasks := task.NewManager(engine, cfg.Task)
	tasks.Start()
	defer tasks.Stop()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	reporters := map[string]router.StatusFunc{"chain": d.chain.GetHealthStatus}
	if responses != nil {
		reporters["responses"] = responses.GetStatus
	}
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Setup(engine, reporters),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
	logger.Sync()
	return nil
}
