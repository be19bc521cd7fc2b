package stakepool

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"groupfeed/internal/ledger"
	"groupfeed/internal/oracle"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testKey(seed byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = seed
	}
	return solana.PublicKeyFromBytes(raw[:])
}

type fakeLoader struct {
	metadata map[solana.PublicKey]Metadata
	err      error
}

func (f *fakeLoader) LoadMetadata(context.Context) (map[solana.PublicKey]Metadata, error) {
	return f.metadata, f.err
}

type fakeReader struct {
	accounts map[solana.PublicKey]*ledger.Account
	err      error
}

func (f *fakeReader) GetMultipleAccounts(_ context.Context, keys []solana.PublicKey) ([]*ledger.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*ledger.Account, len(keys))
	for i, key := range keys {
		out[i] = f.accounts[key]
	}
	return out, nil
}

func encodeMint(supply uint64) []byte {
	data := make([]byte, mintAccountLen)
	binary.LittleEndian.PutUint64(data[mintSupplyOffset:], supply)
	return data
}

func encodeStake(delegated uint64) []byte {
	data := make([]byte, stakeAccountMinLen)
	binary.LittleEndian.PutUint64(data[delegationStakeOffset:], delegated)
	return data
}

func rawReading(price int64, ts int64) oracle.Reading {
	p := decimal.NewFromInt(price)
	components := oracle.PriceComponents{Price: p, Confidence: decimal.NewFromInt(1), LowestPrice: p.Sub(decimal.NewFromInt(1)), HighestPrice: p.Add(decimal.NewFromInt(1))}
	return oracle.Reading{Realtime: components, Weighted: components, Timestamp: ts}
}

func stakedFixture(t *testing.T, supply, delegated uint64) (*Adjuster, StakedBank) {
	t.Helper()

	bankAddress := testKey(1)
	vote := testKey(2)
	token := testKey(3)

	pool, err := DerivePoolAddress(vote)
	if err != nil {
		t.Fatalf("派生 pool 地址失败: %v", err)
	}
	stakeAddress, err := DerivePoolStakeAddress(pool)
	if err != nil {
		t.Fatalf("派生 stake 地址失败: %v", err)
	}

	loader := &fakeLoader{metadata: map[solana.PublicKey]Metadata{
		bankAddress: {ValidatorVoteAccount: vote, TokenAddress: token},
	}}
	reader := &fakeReader{accounts: map[solana.PublicKey]*ledger.Account{
		token:        {Key: token, Data: encodeMint(supply)},
		stakeAddress: {Key: stakeAddress, Data: encodeStake(delegated)},
	}}

	adjuster := NewAdjuster(loader, reader, noopLogger())
	return adjuster, StakedBank{BankAddress: bankAddress, Mint: token, Reading: rawReading(100, 1700000000)}
}

func TestAdjustRescales(t *testing.T) {
	// 质押 3 SOL, 减去 1 SOL 储备后除以 1e9 supply, 比例为 2
	adjuster, sb := stakedFixture(t, uint64(solana.LAMPORTS_PER_SOL), 3*uint64(solana.LAMPORTS_PER_SOL))

	outcomes := adjuster.Adjust(context.Background(), []StakedBank{sb})
	if len(outcomes) != 1 {
		t.Fatalf("每个 bank 都应有结果, 实际 %d", len(outcomes))
	}
	out := outcomes[0]
	if !out.Adjusted || out.SkipReason != "" {
		t.Fatalf("应成功调整: %+v", out)
	}
	if !out.Reading.Realtime.Price.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("期望调整后价格 200, 实际 %s", out.Reading.Realtime.Price)
	}
	if !out.Reading.Realtime.Confidence.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("confidence 不应缩放, 实际 %s", out.Reading.Realtime.Confidence)
	}
	if !out.Reading.Realtime.LowestPrice.Equal(decimal.NewFromInt(198)) {
		t.Fatalf("lowest 应按比例缩放, 实际 %s", out.Reading.Realtime.LowestPrice)
	}
	if out.Reading.Timestamp != 1700000000 {
		t.Fatalf("timestamp 应保留, 实际 %d", out.Reading.Timestamp)
	}
}

func TestAdjustZeroSupply(t *testing.T) {
	adjuster, sb := stakedFixture(t, 0, 3*uint64(solana.LAMPORTS_PER_SOL))

	outcomes := adjuster.Adjust(context.Background(), []StakedBank{sb})
	out := outcomes[0]
	if !out.Adjusted {
		t.Fatalf("零 supply 仍算成功调整: %+v", out)
	}
	if !out.Reading.Realtime.IsZero() || !out.Reading.Weighted.IsZero() {
		t.Fatal("零 supply 应把所有分量归零")
	}
	if out.Reading.Timestamp != 1700000000 {
		t.Fatal("零 supply 结果应保留原 timestamp")
	}
}

func TestAdjustNegativeScalarClamped(t *testing.T) {
	// 质押不足 1 SOL 储备, 比例应被钳为零
	adjuster, sb := stakedFixture(t, uint64(solana.LAMPORTS_PER_SOL), uint64(solana.LAMPORTS_PER_SOL)/2)

	out := adjuster.Adjust(context.Background(), []StakedBank{sb})[0]
	if !out.Adjusted {
		t.Fatalf("应成功调整: %+v", out)
	}
	if !out.Reading.Realtime.Price.IsZero() {
		t.Fatalf("负比例应钳为零价, 实际 %s", out.Reading.Realtime.Price)
	}
	if !out.Reading.Realtime.Confidence.Equal(decimal.NewFromInt(1)) {
		t.Fatal("钳零后 confidence 仍应保留")
	}
}

func TestAdjustMetadataUnavailable(t *testing.T) {
	adjuster := NewAdjuster(&fakeLoader{err: errors.New("fetch failed")}, &fakeReader{}, noopLogger())
	sb := StakedBank{BankAddress: testKey(1), Reading: rawReading(100, 1700000000)}

	out := adjuster.Adjust(context.Background(), []StakedBank{sb})[0]
	if out.Adjusted || out.SkipReason != "metadata unavailable" {
		t.Fatalf("元数据不可用应跳过: %+v", out)
	}
	if !out.Reading.Realtime.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatal("跳过时应保留原始价格")
	}
}

func TestAdjustMissingMetadataEntry(t *testing.T) {
	adjuster := NewAdjuster(&fakeLoader{metadata: map[solana.PublicKey]Metadata{}}, &fakeReader{}, noopLogger())
	sb := StakedBank{BankAddress: testKey(1), Reading: rawReading(100, 1700000000)}

	out := adjuster.Adjust(context.Background(), []StakedBank{sb})[0]
	if out.Adjusted || out.SkipReason != "no metadata entry" {
		t.Fatalf("缺少条目应跳过: %+v", out)
	}
}

func TestAdjustAccountAbsent(t *testing.T) {
	adjuster, sb := stakedFixture(t, uint64(solana.LAMPORTS_PER_SOL), 3*uint64(solana.LAMPORTS_PER_SOL))
	adjuster.reader = &fakeReader{}

	out := adjuster.Adjust(context.Background(), []StakedBank{sb})[0]
	if out.Adjusted {
		t.Fatalf("账户缺失应跳过: %+v", out)
	}
	if !out.Reading.Realtime.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatal("跳过时应保留原始价格")
	}
}

var _ MetadataLoader = (*fakeLoader)(nil)
var _ ledger.AccountReader = (*fakeReader)(nil)
