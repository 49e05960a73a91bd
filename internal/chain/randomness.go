package chain

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Randomness 随机数来源，subject 区分不同用途
type Randomness interface {
	Random(ctx context.Context, subject []byte) (common.Hash, error)
}

// KeccakRandomness 以固定种子和 subject 计算 keccak256
type KeccakRandomness struct {
	seed []byte
}

// NewKeccakRandomness 创建 keccak 随机数来源，固定种子的结果可预测，只用于测试和本地环境
func NewKeccakRandomness(seed string) *KeccakRandomness {
	return &KeccakRandomness{seed: []byte(seed)}
}

// NewSecretKeccakRandomness 使用进程内生成的 32 字节密钥作为种子
func NewSecretKeccakRandomness() (*KeccakRandomness, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate random seed: %w", err)
	}
	return &KeccakRandomness{seed: seed}, nil
}

func (k *KeccakRandomness) Random(_ context.Context, subject []byte) (common.Hash, error) {
	return crypto.Keccak256Hash(k.seed, subject), nil
}

// HashSource 提供已确认的区块哈希
type HashSource interface {
	ConfirmedBlockHash(ctx context.Context) (common.Hash, uint64, error)
}

// BeaconRandomness 以外部链已确认区块的哈希作为信标
type BeaconRandomness struct {
	source HashSource
}

// NewBeaconRandomness 创建信标随机数来源
func NewBeaconRandomness(source HashSource) *BeaconRandomness {
	return &BeaconRandomness{source: source}
}

func (b *BeaconRandomness) Random(ctx context.Context, subject []byte) (common.Hash, error) {
	hash, _, err := b.source.ConfirmedBlockHash(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(hash.Bytes(), subject), nil
}

// Subject 用途和序号组成的 subject
func Subject(purpose string, nonce uint64) []byte {
	subject := make([]byte, 0, len(purpose)+8)
	subject = append(subject, purpose...)
	return binary.BigEndian.AppendUint64(subject, nonce)
}

// Uint64 取哈希的前八个字节
func Uint64(hash common.Hash) uint64 {
	return binary.BigEndian.Uint64(hash[:8])
}
