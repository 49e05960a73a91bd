package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/ethereum"
	"github.com/blues/launchpad/internal/logger"
)

// Manager 区块时钟和随机数来源管理器
type Manager struct {
	mu         sync.RWMutex
	clock      *LocalClock
	randomness Randomness
	client     *ethereum.Client // random_source 为 ethereum 时使用
	config     config.ChainConfig
}

// NewManager 创建链管理器
func NewManager(cfg config.ChainConfig) (*Manager, error) {
	manager := &Manager{
		clock:  NewLocalClock(cfg.StartBlock),
		config: cfg,
	}

	if err := manager.initRandomness(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize randomness: %w", err)
	}

	return manager, nil
}

// initRandomness 按配置初始化随机数来源
func (m *Manager) initRandomness(cfg config.ChainConfig) error {
	logger.Info("Initializing randomness source (type: %s)", cfg.RandomSource)

	switch cfg.RandomSource {
	case "keccak":
		if cfg.RandomSeed == "" {
			randomness, err := NewSecretKeccakRandomness()
			if err != nil {
				return err
			}
			m.randomness = randomness
			break
		}
		logger.Warn("Fixed random seed configured, candle endings are predictable")
		m.randomness = NewKeccakRandomness(cfg.RandomSeed)
	case "", "ethereum":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("Creating ethereum client connection (RPC: %s)", cfg.RpcUrl)
		client, err := ethereum.Dial(ctx, cfg.RpcUrl, cfg.Confirmations)
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		m.client = client
		m.randomness = NewBeaconRandomness(client)
	default:
		return fmt.Errorf("unsupported random source %s, supported types: keccak, ethereum", cfg.RandomSource)
	}

	logger.Info("Successfully initialized randomness source")
	return nil
}

// GetClock 获取区块时钟
func (m *Manager) GetClock() *LocalClock {
	return m.clock
}

// GetRandomness 获取随机数来源
func (m *Manager) GetRandomness() Randomness {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.randomness
}

// GetConfig 获取链配置
func (m *Manager) GetConfig() config.ChainConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetHealthStatus 获取健康状态
func (m *Manager) GetHealthStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := map[string]interface{}{
		"block":         m.clock.BlockNumber(),
		"random_source": m.config.RandomSource,
		"client_status": "not_used",
	}

	// 检查客户端连接状态
	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if latest, err := m.client.GetLatestBlock(ctx); err != nil {
			health["client_status"] = "disconnected"
		} else {
			health["client_status"] = "connected"
			health["beacon_block"] = latest
		}
	}

	return health
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		m.client.Close()
	}

	logger.Info("Chain manager closed")
	return nil
}
