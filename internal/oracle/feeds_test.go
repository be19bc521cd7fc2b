package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"groupfeed/internal/bank"
	"groupfeed/internal/ledger"
)

type fakeReader struct {
	existing map[solana.PublicKey]bool
	err      error
	requests [][]solana.PublicKey
}

func (f *fakeReader) GetMultipleAccounts(_ context.Context, keys []solana.PublicKey) ([]*ledger.Account, error) {
	f.requests = append(f.requests, append([]solana.PublicKey(nil), keys...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*ledger.Account, len(keys))
	for i, key := range keys {
		if f.existing[key] {
			out[i] = &ledger.Account{Key: key}
		}
	}
	return out, nil
}

func testKey(seed byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = seed
	}
	return solana.PublicKeyFromBytes(raw[:])
}

func pushBank(address, feedID solana.PublicKey) *bank.Keyed {
	return &bank.Keyed{Bank: &bank.Bank{
		Address: address,
		Oracle:  bank.OracleConfig{Kind: bank.OracleKindPythPush, Keys: [2]solana.PublicKey{feedID}},
	}}
}

func pullBank(address, oracleKey solana.PublicKey) *bank.Keyed {
	return &bank.Keyed{Bank: &bank.Bank{
		Address: address,
		Oracle:  bank.OracleConfig{Kind: bank.OracleKindSwitchboardPull, Keys: [2]solana.PublicKey{oracleKey}},
	}}
}

func TestResolveFeedsPullDirect(t *testing.T) {
	reader := &fakeReader{}
	b := pullBank(testKey(1), testKey(2))

	feedMap, err := ResolveFeeds(context.Background(), reader, []*bank.Keyed{b})
	if err != nil {
		t.Fatalf("解析 feed map 失败: %v", err)
	}
	if feedMap[testKey(1)] != testKey(2) {
		t.Fatal("pull bank 应直接映射到 oracle key")
	}
	if len(reader.requests) != 0 {
		t.Fatal("纯 pull bank 不应触发账户探测")
	}
}

func TestResolveFeedsPushShardProbe(t *testing.T) {
	feedID := testKey(5)
	shard0, err := DeriveShardFeedAccount(0, feedID)
	if err != nil {
		t.Fatalf("派生 shard0 账户失败: %v", err)
	}
	shard3301, err := DeriveShardFeedAccount(3301, feedID)
	if err != nil {
		t.Fatalf("派生 shard3301 账户失败: %v", err)
	}

	cases := []struct {
		name     string
		existing map[solana.PublicKey]bool
		want     solana.PublicKey
	}{
		{"仅 shard0 存在", map[solana.PublicKey]bool{shard0: true}, shard0},
		{"仅 shard3301 存在", map[solana.PublicKey]bool{shard3301: true}, shard3301},
		{"两个都存在优先 shard0", map[solana.PublicKey]bool{shard0: true, shard3301: true}, shard0},
		{"都不存在回落 shard0", nil, shard0},
	}

	for _, tc := range cases {
		reader := &fakeReader{existing: tc.existing}
		feedMap, err := ResolveFeeds(context.Background(), reader, []*bank.Keyed{pushBank(testKey(1), feedID)})
		if err != nil {
			t.Fatalf("%s: 解析失败: %v", tc.name, err)
		}
		if feedMap[testKey(1)] != tc.want {
			t.Fatalf("%s: 解析到错误账户", tc.name)
		}
		if len(reader.requests) != 1 || len(reader.requests[0]) != 2 {
			t.Fatalf("%s: 探测应是一次批量读取", tc.name)
		}
	}
}

func TestResolveFeedsZeroKey(t *testing.T) {
	b := pushBank(testKey(1), solana.PublicKey{})
	if _, err := ResolveFeeds(context.Background(), &fakeReader{}, []*bank.Keyed{b}); err == nil {
		t.Fatal("未配置 oracle key 应报错")
	}
}

func TestResolveFeedsProbeError(t *testing.T) {
	reader := &fakeReader{err: errors.New("rpc down")}
	if _, err := ResolveFeeds(context.Background(), reader, []*bank.Keyed{pushBank(testKey(1), testKey(5))}); err == nil {
		t.Fatal("探测失败应报错")
	}
}

func TestExclusion(t *testing.T) {
	denylist := Exclusion{"3jt43us"}

	if !denylist.Excludes("xx3jt43usyy") {
		t.Fatal("含列入子串的地址应被排除")
	}
	if denylist.Excludes("otherbank") {
		t.Fatal("不含子串的地址不应被排除")
	}
	if (Exclusion{""}).Excludes("anything") {
		t.Fatal("空子串不应匹配任何地址")
	}
}
