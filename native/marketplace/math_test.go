package marketplace

import (
	"math/big"
	"testing"
)

func TestCheckUint256(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := checkUint256("amount", max); err != nil {
		t.Fatalf("max uint256 should pass: %v", err)
	}
	over := new(big.Int).Add(max, big.NewInt(1))
	if err := checkUint256("amount", over); err == nil {
		t.Fatal("expected overflow rejection")
	}
	if err := checkUint256("amount", big.NewInt(-1)); err == nil {
		t.Fatal("expected negative rejection")
	}
	if err := checkUint256("amount", nil); err != nil {
		t.Fatalf("nil should pass: %v", err)
	}
}

func TestMulDivFloorsAndKeepsPrecision(t *testing.T) {
	got, err := mulDiv(big.NewInt(100), big.NewInt(150_000), big.NewInt(1_000))
	if err != nil {
		t.Fatalf("mulDiv: %v", err)
	}
	if got.Cmp(big.NewInt(15_000)) != 0 {
		t.Fatalf("expected 15000, got %s", got)
	}

	// 7*3/2 floors to 10, not 10.5, and not (7/2)*3 = 9.
	got, err = mulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if err != nil {
		t.Fatalf("mulDiv: %v", err)
	}
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected floor(21/2)=10, got %s", got)
	}

	// Operands near 2^255 must not lose precision.
	a := new(big.Int).Lsh(big.NewInt(1), 255)
	b := big.NewInt(3)
	got, err = mulDiv(a, b, big.NewInt(2))
	if err != nil {
		t.Fatalf("mulDiv: %v", err)
	}
	want := new(big.Int).Mul(a, b)
	want.Div(want, big.NewInt(2))
	if got.Cmp(want) != 0 {
		t.Fatal("large-operand mulDiv lost precision")
	}

	if _, err := mulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0)); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestMulDivDoesNotMutateOperands(t *testing.T) {
	a := big.NewInt(123)
	b := big.NewInt(456)
	if _, err := mulDiv(a, b, big.NewInt(7)); err != nil {
		t.Fatalf("mulDiv: %v", err)
	}
	if a.Cmp(big.NewInt(123)) != 0 || b.Cmp(big.NewInt(456)) != 0 {
		t.Fatal("mulDiv mutated an operand")
	}
}

func TestApplyBps(t *testing.T) {
	if got := applyBps(big.NewInt(1_000), 2_500); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected 250, got %s", got)
	}
	if got := applyBps(big.NewInt(1_000), 0); got.Sign() != 0 {
		t.Fatalf("expected 0 for zero rate, got %s", got)
	}
	if got := applyBps(nil, 2_500); got.Sign() != 0 {
		t.Fatalf("expected 0 for nil amount, got %s", got)
	}
	// 3 * 2500 / 10000 floors to 0.
	if got := applyBps(big.NewInt(3), 2_500); got.Sign() != 0 {
		t.Fatalf("expected floored 0, got %s", got)
	}
}

func TestPow10(t *testing.T) {
	if got := pow10(0); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected 1, got %s", got)
	}
	if got := pow10(18); got.Cmp(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)) != 0 {
		t.Fatalf("pow10(18) mismatch: %s", got)
	}
}
