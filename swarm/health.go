package swarm

import (
	"errors"
	"fmt"
	"time"
)

// SignatureLength is the fixed length of the anomaly signature vector.
const SignatureLength = 32

// MaxCompressedSize is the upper bound for a compressed health payload.
const MaxCompressedSize = 1024

// Health bound errors.
var (
	ErrRiskOutOfRange       = errors.New("risk score must be in [0,1]")
	ErrRecurrenceOutOfRange = errors.New("recurrence score must be in [0,10]")
	ErrCompressedTooLarge   = errors.New("compressed size exceeds maximum")
)

// HealthSummary is a bounded snapshot of an agent's health. Construction
// validates every bound; violating a bound is an error, never a clamp.
type HealthSummary struct {
	// AnomalySignature is the fixed-length anomaly feature vector.
	// Components are nominally in [-1, 1]; the compressor clamps to that
	// range during quantization.
	AnomalySignature [SignatureLength]float32

	// RiskScore is the aggregate fault risk, in [0, 1].
	RiskScore float64

	// RecurrenceScore measures fault recurrence, in [0, 10].
	RecurrenceScore float64

	// Timestamp is when the snapshot was taken. Not carried across the
	// wire: receivers stamp decoded summaries with their own receipt time.
	Timestamp time.Time

	// CompressedSize is the wire size in bytes after compression,
	// 0 if the summary has not been compressed yet. At most
	// MaxCompressedSize.
	CompressedSize int
}

// NewHealthSummary validates bounds and builds a summary stamped with the
// current time.
func NewHealthSummary(signature [SignatureLength]float32, risk, recurrence float64) (*HealthSummary, error) {
	h := &HealthSummary{
		AnomalySignature: signature,
		RiskScore:        risk,
		RecurrenceScore:  recurrence,
		Timestamp:        time.Now(),
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks every bound on the summary.
func (h *HealthSummary) Validate() error {
	if h.RiskScore < 0 || h.RiskScore > 1 {
		return fmt.Errorf("%w: got %v", ErrRiskOutOfRange, h.RiskScore)
	}
	if h.RecurrenceScore < 0 || h.RecurrenceScore > 10 {
		return fmt.Errorf("%w: got %v", ErrRecurrenceOutOfRange, h.RecurrenceScore)
	}
	if h.CompressedSize < 0 || h.CompressedSize > MaxCompressedSize {
		return fmt.Errorf("%w: got %d, max %d", ErrCompressedTooLarge, h.CompressedSize, MaxCompressedSize)
	}
	return nil
}
