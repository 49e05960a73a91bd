package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/blues/launchpad/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClock(t *testing.T) {
	clock := NewLocalClock(5)
	assert.Equal(t, uint64(5), clock.BlockNumber())
	assert.Equal(t, uint64(6), clock.Advance())

	clock.AdvanceTo(3)
	assert.Equal(t, uint64(6), clock.BlockNumber())
	clock.AdvanceTo(100)
	assert.Equal(t, uint64(100), clock.BlockNumber())
}

func TestKeccakRandomnessIsDeterministicPerSubject(t *testing.T) {
	r := NewKeccakRandomness("seed")
	ctx := context.Background()

	a, err := r.Random(ctx, Subject("candle", 0))
	require.NoError(t, err)
	b, err := r.Random(ctx, Subject("candle", 0))
	require.NoError(t, err)
	c, err := r.Random(ctx, Subject("candle", 1))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	other, err := NewKeccakRandomness("other").Random(ctx, Subject("candle", 0))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

type fakeHashSource struct {
	hash common.Hash
	err  error
}

func (f *fakeHashSource) ConfirmedBlockHash(context.Context) (common.Hash, uint64, error) {
	return f.hash, 10, f.err
}

func TestBeaconRandomness(t *testing.T) {
	source := &fakeHashSource{hash: common.HexToHash("0x01")}
	r := NewBeaconRandomness(source)

	first, err := r.Random(context.Background(), Subject("candle", 0))
	require.NoError(t, err)

	source.hash = common.HexToHash("0x02")
	second, err := r.Random(context.Background(), Subject("candle", 0))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	source.err = errors.New("node down")
	_, err = r.Random(context.Background(), Subject("candle", 0))
	assert.Error(t, err)
}

func TestSubjectAndUint64(t *testing.T) {
	subject := Subject("ab", 1)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 0, 0, 1}, subject)

	hash := common.Hash{}
	hash[7] = 9
	assert.Equal(t, uint64(9), Uint64(hash))
}

func TestNewManagerRejectsUnknownSource(t *testing.T) {
	_, err := NewManager(config.ChainConfig{RandomSource: "dice"})
	assert.Error(t, err)

	m, err := NewManager(config.ChainConfig{RandomSource: "keccak", StartBlock: 7})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), m.GetClock().BlockNumber())
	assert.NotNil(t, m.GetRandomness())
}

func TestKeccakWithoutSeedIsNotPublic(t *testing.T) {
	m, err := NewManager(config.ChainConfig{RandomSource: "keccak"})
	require.NoError(t, err)
	other, err := NewManager(config.ChainConfig{RandomSource: "keccak"})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := m.GetRandomness().Random(ctx, Subject("candle", 0))
	require.NoError(t, err)
	second, err := other.GetRandomness().Random(ctx, Subject("candle", 0))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	public, err := NewKeccakRandomness("").Random(ctx, Subject("candle", 0))
	require.NoError(t, err)
	assert.NotEqual(t, public, first)
}
