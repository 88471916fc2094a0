package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/vesting/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ScheduleID", id.NewScheduleID, "vsch_"},
		{"TransferID", id.NewTransferID, "xfer_"},
		{"OperationID", id.NewOperationID, "op_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"ScheduleID", id.NewScheduleID, id.ParseScheduleID},
		{"TransferID", id.NewTransferID, id.ParseTransferID},
		{"OperationID", id.NewOperationID, id.ParseOperationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseScheduleID rejects xfer_", id.NewTransferID().String(), id.ParseScheduleID},
		{"ParseTransferID rejects op_", id.NewOperationID().String(), id.ParseTransferID},
		{"ParseOperationID rejects vsch_", id.NewScheduleID().String(), id.ParseOperationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("expected NULL value, got %v, %v", v, err)
	}
}

func TestScan(t *testing.T) {
	original := id.NewScheduleID()

	var fromString id.ID
	if err := fromString.Scan(original.String()); err != nil {
		t.Fatalf("Scan(string) failed: %v", err)
	}
	if fromString.String() != original.String() {
		t.Errorf("mismatch: %q != %q", fromString.String(), original.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}
	if fromBytes.String() != original.String() {
		t.Errorf("mismatch: %q != %q", fromBytes.String(), original.String())
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewTransferID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var restored2 id.ID
	if err := restored2.UnmarshalText([]byte{}); err != nil {
		t.Fatalf("UnmarshalText(empty) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}
