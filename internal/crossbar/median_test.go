package crossbar

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMedianOdd(t *testing.T) {
	m, ok := median([]float64{10, 12, 11})
	if !ok || m != 11 {
		t.Fatalf("期望中位数 11, 实际 %v", m)
	}
}

func TestMedianEven(t *testing.T) {
	m, ok := median([]float64{10, 12})
	if !ok || m != 11 {
		t.Fatalf("偶数样本应取中间两值平均, 实际 %v", m)
	}
}

func TestMedianEmpty(t *testing.T) {
	if _, ok := median(nil); ok {
		t.Fatal("空样本不应有中位数")
	}
}

func TestMedianDecimalStrings(t *testing.T) {
	m, err := medianDecimalStrings([]string{"10.000000000000000003", "10.000000000000000001", "10.000000000000000002"})
	if err != nil {
		t.Fatalf("字符串中位数失败: %v", err)
	}
	if !m.Equal(decimal.RequireFromString("10.000000000000000002")) {
		t.Fatalf("字符串路径应保留精度, 实际 %s", m)
	}

	if _, err := medianDecimalStrings([]string{"abc"}); err == nil {
		t.Fatal("非法样本应报错")
	}
}

func TestMedianPrice(t *testing.T) {
	m, ok := medianPrice([]any{float64(98), float64(99), float64(100)})
	if !ok || !m.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("期望数值中位数 99, 实际 %s", m)
	}

	m, ok = medianPrice([]any{"1.5", "2.5", "3.5"})
	if !ok || !m.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("期望字符串中位数 2.5, 实际 %s", m)
	}

	if _, ok := medianPrice(nil); ok {
		t.Fatal("空样本不应可用")
	}
}

func TestSampleUsable(t *testing.T) {
	if !sampleUsable([]any{float64(1)}) || !sampleUsable([]any{"1.5"}) {
		t.Fatal("合法样本应判定可用")
	}
	if sampleUsable(nil) || sampleUsable([]any{"abc"}) || sampleUsable([]any{true}) {
		t.Fatal("非法样本应判定不可用")
	}
}
