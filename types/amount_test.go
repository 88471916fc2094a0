package types

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"whole", "2500", 18, "2500000000000000000000", false},
		{"fractional", "252.36585", 18, "252365850000000000000", false},
		{"dust", "2499.998", 18, "2499998000000000000000", false},
		{"usdc", "3600", 6, "3600000000", false},
		{"zero decimals", "42", 0, "42", false},
		{"too precise", "1.0000001", 6, "", true},
		{"negative", "-1", 18, "", true},
		{"garbage", "abc", 18, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.input, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountFormat(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		decimals uint8
		want     string
	}{
		{"swap output", MustParseAmount("63091462500000000000"), 18, "63.0914625"},
		{"whole", Units(300, 18), 18, "300"},
		{"six decimals", NewAmount(1_500_000), 6, "1.5"},
		{"zero", Zero(), 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.Format(tt.decimals); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if got := NewAmount(1_234_567).FormatFixed(6, 2); got != "1.23" {
		t.Errorf("FormatFixed: got %q, want %q", got, "1.23")
	}
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(900)
	b := NewAmount(300)

	sum, err := a.Add(b)
	if err != nil || sum.String() != "1200" {
		t.Errorf("Add: got %s, %v", sum, err)
	}

	diff, err := a.Sub(b)
	if err != nil || diff.String() != "600" {
		t.Errorf("Sub: got %s, %v", diff, err)
	}

	if _, err := b.Sub(a); !errors.Is(err, ErrUnderflow) {
		t.Errorf("Sub underflow: got %v", err)
	}
	if got := b.SaturatingSub(a); !got.IsZero() {
		t.Errorf("SaturatingSub: got %s", got)
	}

	prod, err := a.Mul(b)
	if err != nil || prod.String() != "270000" {
		t.Errorf("Mul: got %s, %v", prod, err)
	}

	q, err := NewAmount(10).Div(NewAmount(3))
	if err != nil || q.String() != "3" {
		t.Errorf("Div: got %s, %v", q, err)
	}
	if _, err := a.Div(Zero()); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Div by zero: got %v", err)
	}

	pct, err := NewAmount(4000).Percent(2)
	if err != nil || pct.String() != "80" {
		t.Errorf("Percent: got %s, %v", pct, err)
	}

	if got := a.Min(b); !got.Equal(b) {
		t.Errorf("Min: got %s", got)
	}
}

func TestAmountMulDivTruncates(t *testing.T) {
	total := Units(1000, 18)
	got, err := total.MulDiv(NewAmount(52), NewAmount(55))
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "945454545454545454545" {
		t.Errorf("got %s", got)
	}

	// The intermediate product exceeds 256 bits but the result fits.
	max := MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	got, err = max.MulDiv(max, max)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(max) {
		t.Errorf("wide MulDiv: got %s", got)
	}
}

func TestAmountOverflow(t *testing.T) {
	max := MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if _, err := max.Add(NewAmount(1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("Add overflow: got %v", err)
	}
	if _, err := max.Mul(NewAmount(2)); !errors.Is(err, ErrOverflow) {
		t.Errorf("Mul overflow: got %v", err)
	}

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := FromBig(tooBig); !errors.Is(err, ErrOverflow) {
		t.Errorf("FromBig overflow: got %v", err)
	}
	if _, err := FromBig(big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("FromBig negative: got %v", err)
	}
}

func TestPow10(t *testing.T) {
	got, err := Pow10(6)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "1000000" {
		t.Errorf("Pow10(6) = %s", got)
	}
	if _, err := Pow10(MaxDecimals); err != nil {
		t.Errorf("Pow10(MaxDecimals): %v", err)
	}
	if _, err := Pow10(MaxDecimals + 1); !errors.Is(err, ErrDecimals) {
		t.Errorf("Pow10 above MaxDecimals: got %v", err)
	}
	if _, err := Pow10(255); !errors.Is(err, ErrDecimals) {
		t.Errorf("Pow10(255): got %v", err)
	}
}

func TestAmountJSON(t *testing.T) {
	type wrapper struct {
		Value Amount `json:"value"`
	}

	in := wrapper{Value: Units(5000, 18)}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"value":"5000000000000000000000"}` {
		t.Errorf("marshal: got %s", data)
	}

	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Value.Equal(in.Value) {
		t.Errorf("unmarshal: got %s", out.Value)
	}

	if err := json.Unmarshal([]byte(`{"value":1200}`), &out); err != nil {
		t.Fatal(err)
	}
	if out.Value.String() != "1200" {
		t.Errorf("numeric unmarshal: got %s", out.Value)
	}
}

func TestAmountScan(t *testing.T) {
	var a Amount
	if err := a.Scan("12345"); err != nil || a.String() != "12345" {
		t.Errorf("Scan string: got %s, %v", a, err)
	}
	if err := a.Scan([]byte("7")); err != nil || a.String() != "7" {
		t.Errorf("Scan bytes: got %s, %v", a, err)
	}
	if err := a.Scan(int64(-1)); err == nil {
		t.Error("Scan negative: expected error")
	}
	if err := a.Scan(nil); err != nil || !a.IsZero() {
		t.Errorf("Scan nil: got %s, %v", a, err)
	}

	v, err := Units(1, 6).Value()
	if err != nil || v != "1000000" {
		t.Errorf("Value: got %v, %v", v, err)
	}
}

func TestSum(t *testing.T) {
	got, err := Sum(NewAmount(1), NewAmount(2), NewAmount(3))
	if err != nil || got.String() != "6" {
		t.Errorf("got %s, %v", got, err)
	}
}
