package swarm

import (
	"testing"
)

func TestNewHealthSummary_Bounds(t *testing.T) {
	var sig [SignatureLength]float32

	tests := []struct {
		name       string
		risk       float64
		recurrence float64
		wantErr    bool
	}{
		{"nominal", 0.5, 3.0, false},
		{"zero", 0, 0, false},
		{"max", 1, 10, false},
		{"risk too high", 1.01, 0, true},
		{"risk negative", -0.01, 0, true},
		{"recurrence too high", 0, 10.5, true},
		{"recurrence negative", 0, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHealthSummary(sig, tt.risk, tt.recurrence)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewHealthSummary() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && h.Timestamp.IsZero() {
				t.Error("summary should be stamped at construction")
			}
		})
	}
}

func TestHealthSummary_CompressedSizeBound(t *testing.T) {
	var sig [SignatureLength]float32
	h, err := NewHealthSummary(sig, 0.1, 1)
	if err != nil {
		t.Fatalf("NewHealthSummary error: %v", err)
	}

	h.CompressedSize = MaxCompressedSize
	if err := h.Validate(); err != nil {
		t.Errorf("compressed size at maximum should validate, got %v", err)
	}

	h.CompressedSize = MaxCompressedSize + 1
	if err := h.Validate(); err == nil {
		t.Error("compressed size above maximum should fail validation, not clamp")
	}
}
