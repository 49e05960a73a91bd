package xcm

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrations(n int) model.Migrations {
	out := make(model.Migrations, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Migration{
			Origin: model.MigrationOrigin{User: "alice", ID: uint32(i), ParticipationType: model.ParticipationBid},
			Info:   model.MigrationInfo{CtAmount: decimal.RequireFromString("12.5"), VestingTime: uint64(i)},
		})
	}
	return out
}

func TestEncodeDecodeMigrations(t *testing.T) {
	payload, err := EncodeMigrations(7, "alice", migrations(3), 18)
	require.NoError(t, err)

	projectID, user, infos, err := DecodeMigrations(payload, 18)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), projectID)
	assert.Equal(t, "alice", user)
	require.Len(t, infos, 3)
	assert.True(t, infos[0].CtAmount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, uint64(2), infos[2].VestingTime)
}

func TestEncodedSizeGrowsPerMigration(t *testing.T) {
	envelope, err := EnvelopeSize(1, "alice")
	require.NoError(t, err)

	payload, err := EncodeMigrations(1, "alice", migrations(5), 10)
	require.NoError(t, err)
	assert.Equal(t, envelope+5*MigrationSize, len(payload))
}

func TestMigrationsPerMessage(t *testing.T) {
	size, err := FramedSize("alice", 2)
	require.NoError(t, err)

	n, err := MigrationsPerMessage(size+10, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	empty, err := FramedSize("alice", 0)
	require.NoError(t, err)
	_, err = MigrationsPerMessage(empty, 1, "alice")
	assert.True(t, errors.Is(err, errs.ErrCapacityExceeded))
}

func TestFullBatchFitsTransportLimit(t *testing.T) {
	const limit = 4096
	n, err := MigrationsPerMessage(limit, 7, "alice")
	require.NoError(t, err)

	payload, err := EncodeMigrations(math.MaxUint32, "alice", migrations(n), 10)
	require.NoError(t, err)
	raw, err := json.Marshal(NewMigration(math.MaxUint32, math.MaxUint32, math.MaxUint64, payload))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), limit)

	// 多一条就超过上限
	payload, err = EncodeMigrations(math.MaxUint32, "alice", migrations(n+1), 10)
	require.NoError(t, err)
	raw, err = json.Marshal(NewMigration(math.MaxUint32, math.MaxUint32, math.MaxUint64, payload))
	require.NoError(t, err)
	assert.Greater(t, len(raw), limit)
}

func TestChunk(t *testing.T) {
	batches := Chunk(migrations(5), 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, uint32(4), batches[2][0].Origin.ID)

	assert.Empty(t, Chunk(nil, 2))
}

func TestMemoryTransport(t *testing.T) {
	transport := NewMemoryTransport()
	msg := NewMigration(2000, 1, 5, []byte{1})
	require.NoError(t, transport.Send(context.Background(), msg))

	last, ok := transport.Last()
	require.True(t, ok)
	assert.Equal(t, msg.ID, last.ID)

	transport.SetFail(true)
	err := transport.Send(context.Background(), msg)
	assert.True(t, errors.Is(err, errs.ErrTransportFailure))
	assert.Len(t, transport.Sent(), 1)
}
