package xcm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/shopspring/decimal"
)

// 单条迁移编码为两个 32 字节的字
const MigrationSize = 64

type encodedMigration struct {
	Amount      *big.Int `json:"amount"`
	VestingTime uint64   `json:"vestingTime"`
}

var migrationArgs = mustArguments()

func mustArguments() abi.Arguments {
	uint32Type, err := abi.NewType("uint32", "", nil)
	if err != nil {
		panic(err)
	}
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	migrationsType, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "amount", Type: "uint128"},
		{Name: "vestingTime", Type: "uint64"},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "projectId", Type: uint32Type},
		{Name: "user", Type: stringType},
		{Name: "migrations", Type: migrationsType},
	}
}

// EncodeMigrations 将一个用户的迁移编码为接收模块的调用参数，数量按 ctDecimals 换算为最小单位
func EncodeMigrations(projectID uint32, user string, migrations model.Migrations, ctDecimals uint8) ([]byte, error) {
	encoded := make([]encodedMigration, 0, len(migrations))
	for _, migration := range migrations {
		if migration.Info.CtAmount.IsNegative() {
			return nil, errs.New(errs.ErrBadMath, "迁移数量为负: %s", migration.Info.CtAmount)
		}
		units := migration.Info.CtAmount.Shift(int32(ctDecimals)).Truncate(0).BigInt()
		if units.BitLen() > 128 {
			return nil, errs.New(errs.ErrBadMath, "迁移数量溢出: %s", migration.Info.CtAmount)
		}
		encoded = append(encoded, encodedMigration{Amount: units, VestingTime: migration.Info.VestingTime})
	}

	payload, err := migrationArgs.Pack(projectID, user, encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to pack migrations: %w", err)
	}
	return payload, nil
}

// DecodeMigrations 解析 EncodeMigrations 的结果
func DecodeMigrations(payload []byte, ctDecimals uint8) (uint32, string, []model.MigrationInfo, error) {
	values, err := migrationArgs.Unpack(payload)
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to unpack migrations: %w", err)
	}
	if len(values) != 3 {
		return 0, "", nil, fmt.Errorf("unexpected argument count: %d", len(values))
	}

	projectID, ok := values[0].(uint32)
	if !ok {
		return 0, "", nil, fmt.Errorf("invalid project id type %T", values[0])
	}
	user, ok := values[1].(string)
	if !ok {
		return 0, "", nil, fmt.Errorf("invalid user type %T", values[1])
	}
	encoded := *abi.ConvertType(values[2], new([]encodedMigration)).(*[]encodedMigration)

	infos := make([]model.MigrationInfo, 0, len(encoded))
	for _, m := range encoded {
		infos = append(infos, model.MigrationInfo{
			CtAmount:    decimal.NewFromBigInt(m.Amount, -int32(ctDecimals)),
			VestingTime: m.VestingTime,
		})
	}
	return projectID, user, infos, nil
}

// EnvelopeSize 不含迁移时的编码长度
func EnvelopeSize(projectID uint32, user string) (int, error) {
	payload, err := EncodeMigrations(projectID, user, nil, 0)
	if err != nil {
		return 0, err
	}
	return len(payload), nil
}

// FramedSize 一批 n 条迁移编码后经 JSON 封装的最大长度，数字字段按最大值计算
func FramedSize(user string, n int) (int, error) {
	envelope, overhead, err := framing(user)
	if err != nil {
		return 0, err
	}
	return overhead + base64.StdEncoding.EncodedLen(envelope+n*MigrationSize), nil
}

// MigrationsPerMessage 单条消息最多容纳的迁移数量，maxMessageSize 为发送端的消息长度上限
func MigrationsPerMessage(maxMessageSize int, projectID uint32, user string) (int, error) {
	envelope, overhead, err := framing(user)
	if err != nil {
		return 0, err
	}
	// base64 每 4 个字符承载 3 个字节
	payload := (maxMessageSize - overhead) / 4 * 3
	n := (payload - envelope) / MigrationSize
	if maxMessageSize <= overhead || n < 1 {
		return 0, errs.New(errs.ErrCapacityExceeded, "消息大小 %d 放不下项目 %d 的一条迁移", maxMessageSize, projectID)
	}
	return n, nil
}

// framing 返回不含迁移的编码长度，以及 JSON 封装在 payload 之外增加的长度
func framing(user string) (int, int, error) {
	envelope, err := EnvelopeSize(math.MaxUint32, user)
	if err != nil {
		return 0, 0, err
	}
	raw, err := json.Marshal(NewMigration(math.MaxUint32, math.MaxUint32, math.MaxUint64, make([]byte, envelope)))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to marshal message: %w", err)
	}
	return envelope, len(raw) - base64.StdEncoding.EncodedLen(envelope), nil
}

// Chunk 按每批 size 条拆分迁移
func Chunk(migrations model.Migrations, size int) []model.Migrations {
	if size <= 0 {
		return nil
	}
	batches := make([]model.Migrations, 0, (len(migrations)+size-1)/size)
	for start := 0; start < len(migrations); start += size {
		end := start + size
		if end > len(migrations) {
			end = len(migrations)
		}
		batches = append(batches, migrations[start:end])
	}
	return batches
}
