package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/vesting/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestSchedule(total types.Amount, cliff, vesting time.Duration) *Schedule {
	return New("alice", 0, total, Params{
		Asset:           "EEFI",
		CliffDuration:   cliff,
		VestingDuration: vesting,
		StartTime:       t0,
	}, OriginGrant, t0)
}

func TestVestedAmount(t *testing.T) {
	total := types.Units(1000, 18)
	s := newTestSchedule(total, Weeks(52), Weeks(55))

	tests := []struct {
		name    string
		at      time.Time
		want    string
		wantErr error
	}{
		{"at start", t0, "0", ErrCliffNotReached},
		{"just before cliff", t0.Add(Weeks(52) - time.Second), "0", ErrCliffNotReached},
		{"at cliff", t0.Add(Weeks(52)), "945454545454545454545", nil},
		{"at end", t0.Add(Weeks(55)), "1000000000000000000000", nil},
		{"long after end", t0.Add(Weeks(500)), "1000000000000000000000", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VestedAmount(s, tt.at)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error: got %v, want %v", err, tt.wantErr)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVestedAmountMonotonic(t *testing.T) {
	s := newTestSchedule(types.NewAmount(999_999_937), 24*time.Hour, 97*24*time.Hour)

	prev := types.Zero()
	for at := s.CliffTime(); !at.After(s.EndTime().Add(24 * time.Hour)); at = at.Add(7 * time.Hour) {
		got, err := VestedAmount(s, at)
		if err != nil {
			t.Fatalf("at %s: %v", at, err)
		}
		if got.LessThan(prev) {
			t.Fatalf("vested decreased at %s: %s < %s", at, got, prev)
		}
		if got.GreaterThan(s.TotalAmount) {
			t.Fatalf("vested exceeds total at %s: %s", at, got)
		}
		prev = got
	}
	if !prev.Equal(s.TotalAmount) {
		t.Errorf("final vested %s, want %s", prev, s.TotalAmount)
	}
}

func TestVestedAmountTerminal(t *testing.T) {
	s := newTestSchedule(types.NewAmount(1000), time.Hour, 10*time.Hour)
	s.ClaimedAmount = types.NewAmount(300)

	s.Status = StatusCancelled
	got, err := VestedAmount(s, t0.Add(100*time.Hour))
	if err != nil || got.String() != "300" {
		t.Errorf("cancelled: got %s, %v", got, err)
	}
	claimable, err := Claimable(s, t0.Add(100*time.Hour))
	if err != nil || !claimable.IsZero() {
		t.Errorf("cancelled claimable: got %s, %v", claimable, err)
	}

	s.Status = StatusExhausted
	s.ClaimedAmount = s.TotalAmount
	claimable, err = Claimable(s, t0)
	if err != nil || !claimable.IsZero() {
		t.Errorf("exhausted claimable: got %s, %v", claimable, err)
	}
}

func TestClaimable(t *testing.T) {
	s := newTestSchedule(types.NewAmount(1000), time.Hour, 10*time.Hour)
	s.ClaimedAmount = types.NewAmount(200)

	got, err := Claimable(s, t0.Add(5*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "300" {
		t.Errorf("got %s, want 300", got)
	}

	if _, err := Claimable(s, t0); !errors.Is(err, ErrCliffNotReached) {
		t.Errorf("before cliff: got %v", err)
	}

	got, err = VestedAt(s, t0)
	if err != nil || !got.IsZero() {
		t.Errorf("VestedAt before cliff: got %s, %v", got, err)
	}
}

func TestValidateParams(t *testing.T) {
	tol := 10 * time.Minute
	base := Params{Asset: "EEFI", CliffDuration: Weeks(1), VestingDuration: Weeks(4), StartTime: t0}

	tests := []struct {
		name    string
		mutate  func(p *Params)
		bounds  Bounds
		wantErr bool
	}{
		{"valid", func(*Params) {}, Bounds{}, false},
		{"cliff equals vesting", func(p *Params) { p.CliffDuration = p.VestingDuration }, Bounds{}, false},
		{"cliff exceeds vesting", func(p *Params) { p.CliffDuration = Weeks(52); p.VestingDuration = Weeks(50) }, Bounds{}, true},
		{"zero cliff", func(p *Params) { p.CliffDuration = 0 }, Bounds{}, true},
		{"missing asset", func(p *Params) { p.Asset = "" }, Bounds{}, true},
		{"start slightly early", func(p *Params) { p.StartTime = t0.Add(-5 * time.Minute) }, Bounds{}, false},
		{"start too late", func(p *Params) { p.StartTime = t0.Add(time.Hour) }, Bounds{}, true},
		{"start too early", func(p *Params) { p.StartTime = t0.Add(-time.Hour) }, Bounds{}, true},
		{"within bounds", func(*Params) {}, Bounds{Enabled: true, MinCliff: Weeks(1), MaxCliff: Weeks(2), MinVesting: Weeks(4), MaxVesting: Weeks(8)}, false},
		{"cliff below min", func(*Params) {}, Bounds{Enabled: true, MinCliff: Weeks(2)}, true},
		{"vesting above max", func(*Params) {}, Bounds{Enabled: true, MaxVesting: Weeks(3)}, true},
		{"disabled bounds ignored", func(*Params) {}, Bounds{MinCliff: Weeks(10)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			err := ValidateParams(p, t0, tol, tt.bounds)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParams) {
					t.Errorf("expected ErrInvalidParams, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestScheduleClone(t *testing.T) {
	s := newTestSchedule(types.NewAmount(10), time.Hour, 2*time.Hour)
	s.Metadata = map[string]string{"k": "v"}
	at := t0
	s.CancelledAt = &at

	c := s.Clone()
	c.Metadata["k"] = "changed"
	*c.CancelledAt = t0.Add(time.Hour)
	c.ClaimedAmount = types.NewAmount(5)

	if s.Metadata["k"] != "v" || !s.CancelledAt.Equal(t0) || !s.ClaimedAmount.IsZero() {
		t.Error("clone shares state with original")
	}
}
