package swap

import (
	"errors"
	"testing"

	"github.com/xraph/vesting/transfer"
	"github.com/xraph/vesting/types"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name           string
		amount         types.Amount
		ratio          Ratio
		swapDecimals   uint8
		targetDecimals uint8
		want           string
	}{
		{"quarter ratio", types.MustParseUnits("252.36585", 18), Ratio{1, 4}, 18, 18, "63.0914625"},
		{"identity", types.Units(10, 18), Ratio{1, 1}, 18, 18, "10"},
		{"fewer swap decimals", types.Units(10, 9), Ratio{3, 2}, 9, 18, "15"},
		{"truncates", types.NewAmount(7), Ratio{1, 4}, 0, 0, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.amount, tt.ratio, tt.swapDecimals, tt.targetDecimals)
			if err != nil {
				t.Fatal(err)
			}
			if s := got.Format(tt.targetDecimals); s != tt.want {
				t.Errorf("got %s, want %s", s, tt.want)
			}
		})
	}
}

func TestConvertRejectsExcessDecimals(t *testing.T) {
	if _, err := Convert(types.NewAmount(1), Ratio{1, 1}, types.MaxDecimals+1, 18); !errors.Is(err, types.ErrDecimals) {
		t.Errorf("swap decimals: got %v", err)
	}
	if _, err := Convert(types.NewAmount(1), Ratio{1, 1}, 18, 200); !errors.Is(err, types.ErrDecimals) {
		t.Errorf("target decimals: got %v", err)
	}
}

func TestConvertInvalidRatio(t *testing.T) {
	for _, r := range []Ratio{{0, 1}, {1, 0}} {
		if _, err := Convert(types.NewAmount(1), r, 0, 0); !errors.Is(err, ErrInvalidRatio) {
			t.Errorf("ratio %s: got %v", r, err)
		}
	}
}

func TestConfigQuote(t *testing.T) {
	c := Config{
		Ratio:            Ratio{1, 4},
		AuthorizedAssets: map[string]uint8{"AMPL": 9},
	}

	conv, err := c.Quote("AMPL", types.Units(8, 9), "EEFI", 18)
	if err != nil {
		t.Fatal(err)
	}
	if !conv.TargetAmount.Equal(types.Units(2, 18)) {
		t.Errorf("target: got %s", conv.TargetAmount)
	}
	if conv.Custody != transfer.CustodyTreasury {
		t.Errorf("custody: got %s", conv.Custody)
	}

	c.LockMode = true
	if c.Custody() != transfer.CustodyLockbox {
		t.Errorf("lock mode custody: got %s", c.Custody())
	}

	if _, err := c.Quote("WETH", types.NewAmount(1), "EEFI", 18); !errors.Is(err, ErrUnauthorizedAsset) {
		t.Errorf("unauthorized: got %v", err)
	}
	if _, err := c.Quote("AMPL", types.NewAmount(1), "EEFI", 0); !errors.Is(err, ErrZeroOutput) {
		t.Errorf("dust: got %v", err)
	}
}
