package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client 以太坊节点客户端，作为随机信标使用
type Client struct {
	client        *ethclient.Client
	confirmations uint64
}

// Dial 连接节点并检查连通性
func Dial(ctx context.Context, rpcURL string, confirmations uint64) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum client: %w", err)
	}

	// 尝试获取最新区块号
	if _, err := client.BlockNumber(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	return &Client{client: client, confirmations: confirmations}, nil
}

// GetLatestBlock 获取最新区块号
func (c *Client) GetLatestBlock(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// ConfirmedBlockHash 返回已达到确认数的区块哈希和区块号
func (c *Client) ConfirmedBlockHash(ctx context.Context) (common.Hash, uint64, error) {
	latest, err := c.GetLatestBlock(ctx)
	if err != nil {
		return common.Hash{}, 0, err
	}

	number := uint64(0)
	if latest > c.confirmations {
		number = latest - c.confirmations
	}

	header, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return common.Hash{}, 0, fmt.Errorf("failed to get header %d: %w", number, err)
	}
	return header.Hash(), number, nil
}

// Close 关闭连接
func (c *Client) Close() {
	c.client.Close()
}
