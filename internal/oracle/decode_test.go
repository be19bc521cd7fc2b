package oracle

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"

	"groupfeed/internal/bank"
)

func encodePythPush(price int64, conf uint64, exponent int32, publishTime, emaPrice int64, emaConf uint64) []byte {
	data := make([]byte, pythPushAccountLen)
	binary.LittleEndian.PutUint64(data[40:], uint64(price))
	binary.LittleEndian.PutUint64(data[48:], conf)
	binary.LittleEndian.PutUint32(data[56:], uint32(exponent))
	binary.LittleEndian.PutUint64(data[60:], uint64(publishTime))
	binary.LittleEndian.PutUint64(data[68:], uint64(emaPrice))
	binary.LittleEndian.PutUint64(data[76:], emaConf)
	return data
}

func encodeSwitchboardPull(feedHash [32]byte, value, stdDev int64, updatedAt int64) []byte {
	data := make([]byte, swbPullAccountLen)
	copy(data[8:40], feedHash[:])
	// 1e18 定标的 i128, 测试样本都在 i64 范围内
	binary.LittleEndian.PutUint64(data[40:], uint64(value))
	if value < 0 {
		binary.LittleEndian.PutUint64(data[48:], ^uint64(0))
	}
	binary.LittleEndian.PutUint64(data[56:], uint64(stdDev))
	binary.LittleEndian.PutUint64(data[72:], uint64(updatedAt))
	return data
}

func TestDecodePythPush(t *testing.T) {
	// price 100.5, conf 0.25, exponent -2
	data := encodePythPush(10050, 25, -2, 1700000000, 10000, 20)

	r, err := DecodeReading(bank.OracleKindPythPush, data)
	if err != nil {
		t.Fatalf("解码 pyth push 失败: %v", err)
	}
	if !r.Realtime.Price.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("期望 realtime price 100.5, 实际 %s", r.Realtime.Price)
	}
	if !r.Realtime.LowestPrice.Equal(decimal.RequireFromString("100.25")) {
		t.Fatalf("期望 lowest 100.25, 实际 %s", r.Realtime.LowestPrice)
	}
	if !r.Realtime.HighestPrice.Equal(decimal.RequireFromString("100.75")) {
		t.Fatalf("期望 highest 100.75, 实际 %s", r.Realtime.HighestPrice)
	}
	if !r.Weighted.Price.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("期望 weighted price 100, 实际 %s", r.Weighted.Price)
	}
	if r.Timestamp != 1700000000 {
		t.Fatalf("timestamp 不匹配: %d", r.Timestamp)
	}
}

func TestDecodePythPushNonFinite(t *testing.T) {
	cases := map[string][]byte{
		"指数过大": encodePythPush(100, 1, 30, 1700000000, 100, 1),
		"指数过小": encodePythPush(100, 1, -30, 1700000000, 100, 1),
		"负价格":  encodePythPush(-5, 1, -2, 1700000000, 100, 1),
	}
	for name, data := range cases {
		r, err := DecodeReading(bank.OracleKindPythPush, data)
		if err != nil {
			t.Fatalf("%s: 非法价格应归零而非报错: %v", name, err)
		}
		if !r.Realtime.IsZero() || !r.Weighted.IsZero() {
			t.Fatalf("%s: 分量应全部归零", name)
		}
		if r.Timestamp != 1700000000 {
			t.Fatalf("%s: 应保留原始 timestamp, 实际 %d", name, r.Timestamp)
		}
	}
}

func TestDecodePythPushTooShort(t *testing.T) {
	if _, err := DecodeReading(bank.OracleKindPythPush, make([]byte, pythPushAccountLen-1)); err == nil {
		t.Fatal("数据过短应报错")
	}
}

func TestDecodeSwitchboardPull(t *testing.T) {
	var hash [32]byte
	hash[0] = 0xab
	// 4.2 按 1e18 定标, std dev 0.5
	data := encodeSwitchboardPull(hash, 4_200_000_000_000_000_000, 500_000_000_000_000_000, 1700000100)

	r, err := DecodeReading(bank.OracleKindSwitchboardPull, data)
	if err != nil {
		t.Fatalf("解码 switchboard pull 失败: %v", err)
	}
	if !r.Realtime.Price.Equal(decimal.RequireFromString("4.2")) {
		t.Fatalf("期望 price 4.2, 实际 %s", r.Realtime.Price)
	}
	if !r.Realtime.Confidence.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("期望 confidence 0.5, 实际 %s", r.Realtime.Confidence)
	}
	if !r.Realtime.Price.Equal(r.Weighted.Price) {
		t.Fatal("pull feed 的 realtime/weighted 应一致")
	}
	if r.Timestamp != 1700000100 {
		t.Fatalf("timestamp 不匹配: %d", r.Timestamp)
	}
}

func TestDecodeSwitchboardPullNegative(t *testing.T) {
	var hash [32]byte
	data := encodeSwitchboardPull(hash, -1, 0, 1700000100)

	r, err := DecodeReading(bank.OracleKindSwitchboardPull, data)
	if err != nil {
		t.Fatalf("负值应归零而非报错: %v", err)
	}
	if !r.Realtime.IsZero() || r.Timestamp != 1700000100 {
		t.Fatalf("负值读数应归零并保留 timestamp: %+v", r)
	}
}

func TestSwitchboardFeedHash(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	data := encodeSwitchboardPull(hash, 1, 0, 0)

	got, err := SwitchboardFeedHash(data)
	if err != nil {
		t.Fatalf("提取 feed hash 失败: %v", err)
	}
	if got != hex.EncodeToString(hash[:]) {
		t.Fatalf("feed hash 不匹配: %s", got)
	}
}

func TestDecodeUnsupportedKind(t *testing.T) {
	if _, err := DecodeReading(bank.OracleKindNone, make([]byte, 128)); err == nil {
		t.Fatal("未知类型应报错")
	}
}

func TestReadingIsStaleBoundary(t *testing.T) {
	now := int64(1700000000)
	r := Reading{Timestamp: now - 60 - StaleSlackSeconds}

	if r.IsStale(now, 60) {
		t.Fatal("恰好等于 maxAge+slack 不应视为过期")
	}
	r.Timestamp--
	if !r.IsStale(now, 60) {
		t.Fatal("超过 maxAge+slack 一秒应视为过期")
	}
}
