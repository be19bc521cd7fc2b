package bank

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type bankFixture struct {
	mint          solana.PublicKey
	mintDecimals  uint8
	group         solana.PublicKey
	weights       [4]uint64
	depositLimit  uint64
	borrowLimit   uint64
	state         OperationalState
	oracleKind    OracleKind
	oracleKeys    [2]solana.PublicKey
	oracleMaxAge  uint16
	emissionsMint solana.PublicKey
}

func (f bankFixture) encode() []byte {
	data := make([]byte, bankAccountLen)
	copy(data[8:40], f.mint.Bytes())
	data[40] = f.mintDecimals
	copy(data[41:73], f.group.Bytes())
	for i, w := range f.weights {
		binary.LittleEndian.PutUint64(data[73+8*i:], w)
	}
	binary.LittleEndian.PutUint64(data[105:], f.depositLimit)
	binary.LittleEndian.PutUint64(data[113:], f.borrowLimit)
	data[121] = byte(f.state)
	data[122] = byte(f.oracleKind)
	copy(data[123:155], f.oracleKeys[0].Bytes())
	copy(data[155:187], f.oracleKeys[1].Bytes())
	binary.LittleEndian.PutUint16(data[187:], f.oracleMaxAge)
	copy(data[189:221], f.emissionsMint.Bytes())
	return data
}

func testKey(seed byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = seed
	}
	return solana.PublicKeyFromBytes(raw[:])
}

func TestParseBank(t *testing.T) {
	fixture := bankFixture{
		mint:         testKey(1),
		mintDecimals: 9,
		group:        testKey(2),
		weights:      [4]uint64{8000, 9000, 12500, 11000},
		depositLimit: 1_000_000,
		borrowLimit:  500_000,
		state:        OperationalStateOperational,
		oracleKind:   OracleKindSwitchboardPull,
		oracleKeys:   [2]solana.PublicKey{testKey(3), {}},
		oracleMaxAge: 70,
	}

	address := testKey(9)
	b, err := ParseBank(address, fixture.encode())
	if err != nil {
		t.Fatalf("解析 bank 失败: %v", err)
	}

	if b.Address != address {
		t.Fatalf("address 不匹配: %s", b.Address)
	}
	if b.Mint != fixture.mint || b.MintDecimals != 9 {
		t.Fatalf("mint 字段不匹配")
	}
	if b.Group != fixture.group {
		t.Fatalf("group 字段不匹配")
	}
	if !b.Risk.AssetWeightInit.Equal(decimal.RequireFromString("0.8")) {
		t.Fatalf("期望 asset weight init 0.8, 实际 %s", b.Risk.AssetWeightInit)
	}
	if !b.Risk.LiabilityWeightInit.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("期望 liability weight init 1.25, 实际 %s", b.Risk.LiabilityWeightInit)
	}
	if b.Risk.DepositLimit != 1_000_000 || b.Risk.BorrowLimit != 500_000 {
		t.Fatalf("limit 字段不匹配")
	}
	if b.Oracle.Kind != OracleKindSwitchboardPull {
		t.Fatalf("oracle kind 不匹配: %s", b.Oracle.Kind)
	}
	if b.Oracle.Keys[0] != fixture.oracleKeys[0] {
		t.Fatalf("oracle key 不匹配")
	}
	if b.Oracle.MaxAge != 70 {
		t.Fatalf("max age 不匹配: %d", b.Oracle.MaxAge)
	}
	if b.HasEmissions() {
		t.Fatal("全零 emissions mint 不应视为有 emissions")
	}
}

func TestParseBankEmissions(t *testing.T) {
	fixture := bankFixture{
		mint:          testKey(1),
		group:         testKey(2),
		oracleKind:    OracleKindPythPush,
		oracleKeys:    [2]solana.PublicKey{testKey(3), {}},
		emissionsMint: testKey(7),
	}

	b, err := ParseBank(testKey(9), fixture.encode())
	if err != nil {
		t.Fatalf("解析 bank 失败: %v", err)
	}
	if !b.HasEmissions() || b.EmissionsMint != testKey(7) {
		t.Fatalf("emissions mint 不匹配")
	}
}

func TestParseBankTooShort(t *testing.T) {
	if _, err := ParseBank(testKey(1), make([]byte, bankAccountLen-1)); err == nil {
		t.Fatal("数据过短应报错")
	}
}

func TestParseGroup(t *testing.T) {
	data := make([]byte, groupAccountLen)
	copy(data[8:40], testKey(4).Bytes())
	binary.LittleEndian.PutUint64(data[40:], 3)

	g, err := ParseGroup(testKey(5), data)
	if err != nil {
		t.Fatalf("解析 group 失败: %v", err)
	}
	if g.Admin != testKey(4) || g.Flags != 3 {
		t.Fatalf("group 字段不匹配: %+v", g)
	}

	if _, err := ParseGroup(testKey(5), data[:groupAccountLen-1]); err == nil {
		t.Fatal("数据过短应报错")
	}
}

func TestOracleKindIsPush(t *testing.T) {
	if !OracleKindPythPush.IsPush() || !OracleKindStakedPythPush.IsPush() {
		t.Fatal("push 类型判断错误")
	}
	if OracleKindSwitchboardPull.IsPush() || OracleKindNone.IsPush() {
		t.Fatal("非 push 类型判断错误")
	}
}
