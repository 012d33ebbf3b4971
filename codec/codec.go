package codec

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/orbitkit/constellation/errors"
	"github.com/orbitkit/constellation/swarm"
)

// Version is the wire format version this codec speaks.
const Version = 1

// flagEntropy marks a payload that went through the entropy stage.
const flagEntropy = 0x01

const (
	headerSize = 4
	// minMessage is the smallest decodable message: the header plus at
	// least two payload bytes.
	minMessage = 6
	// rawSize is the quantized payload before the entropy stage:
	// two raw float32 scalars plus one byte per signature component.
	rawSize = 8 + swarm.SignatureLength
)

// Config configures a Compressor.
type Config struct {
	// Entropy enables the LZ4 stage. Default: true.
	Entropy bool

	// MaxPayload caps the encoded message size in bytes. Values outside
	// (0, swarm.MaxCompressedSize] fall back to swarm.MaxCompressedSize,
	// the protocol ceiling.
	MaxPayload int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{Entropy: true, MaxPayload: swarm.MaxCompressedSize}
}

// Compressor encodes and decodes health summaries for a single logical
// peer stream. Not safe for concurrent use; give each stream its own
// instance.
type Compressor struct {
	entropy    bool
	maxPayload int
	prev       *[swarm.SignatureLength]float32
}

// New creates a Compressor.
func New(cfg Config) *Compressor {
	limit := cfg.MaxPayload
	if limit <= 0 || limit > swarm.MaxCompressedSize {
		limit = swarm.MaxCompressedSize
	}
	return &Compressor{entropy: cfg.Entropy, maxPayload: limit}
}

// Reset clears the previous-signature baseline, restarting the stream.
// The next Encode or Decode treats its signature as absolute values.
func (c *Compressor) Reset() {
	c.prev = nil
}

// Encode compresses a health summary into its wire representation and
// advances the stream baseline to the summary's signature.
func (c *Compressor) Encode(h *swarm.HealthSummary) ([]byte, error) {
	if h == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "nil health summary")
	}
	if err := h.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeOutOfBounds, "health summary rejected")
	}

	raw := make([]byte, rawSize)
	binary.LittleEndian.PutUint32(raw[0:4], math.Float32bits(float32(h.RiskScore)))
	binary.LittleEndian.PutUint32(raw[4:8], math.Float32bits(float32(h.RecurrenceScore)))

	for i := 0; i < swarm.SignatureLength; i++ {
		v := h.AnomalySignature[i]
		if c.prev != nil {
			v -= c.prev[i]
		}
		raw[8+i] = quantize(v)
	}

	// The baseline is the current absolute signature, not the deltas.
	current := h.AnomalySignature
	c.prev = &current

	payload := raw
	var flags byte
	if c.entropy {
		if compressed, ok := compressLZ4(raw); ok {
			payload = compressed
			flags |= flagEntropy
		}
	}

	out := make([]byte, headerSize+len(payload))
	out[0] = Version
	out[1] = flags
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(raw)))
	copy(out[headerSize:], payload)

	if len(out) > c.maxPayload {
		return nil, errors.Newf(errors.ErrCodeOutOfBounds,
			"compressed payload %d bytes exceeds maximum %d", len(out), c.maxPayload)
	}
	h.CompressedSize = len(out)
	return out, nil
}

// Decode reverses the pipeline and advances the stream baseline to the
// reconstructed signature. The returned summary is stamped with the local
// receipt time; the sender's timestamp is not on the wire.
func (c *Compressor) Decode(data []byte) (*swarm.HealthSummary, error) {
	if len(data) < minMessage {
		return nil, errors.Truncated(len(data), minMessage)
	}
	if data[0] != Version {
		return nil, errors.UnsupportedVersion(data[0])
	}

	flags := data[1]
	origSize := int(binary.LittleEndian.Uint16(data[2:4]))
	payload := data[headerSize:]

	if flags&flagEntropy != 0 {
		decompressed, err := decompressLZ4(payload, origSize)
		if err != nil {
			return nil, err
		}
		payload = decompressed
	}
	if len(payload) != rawSize {
		return nil, errors.Newf(errors.ErrCodeDecompression,
			"payload is %d bytes after entropy stage, want %d", len(payload), rawSize)
	}

	h := &swarm.HealthSummary{
		RiskScore:       float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4]))),
		RecurrenceScore: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8]))),
		Timestamp:       time.Now(),
		CompressedSize:  len(data),
	}

	for i := 0; i < swarm.SignatureLength; i++ {
		v := dequantize(payload[8+i])
		if c.prev != nil {
			v += c.prev[i]
		}
		h.AnomalySignature[i] = v
	}

	current := h.AnomalySignature
	c.prev = &current

	return h, nil
}

// quantize maps a value clamped to [-1, 1] onto an unsigned byte.
func quantize(v float32) byte {
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	return byte(math.Round((float64(v) + 1.0) / 2.0 * 255))
}

// dequantize is the inverse affine map back to [-1, 1].
func dequantize(q byte) float32 {
	return float32(float64(q)/255*2 - 1)
}

// compressLZ4 applies block-mode LZ4. The second return is false when the
// data is incompressible and the raw payload should ship instead.
func compressLZ4(data []byte) ([]byte, bool) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil || written == 0 || written >= len(data) {
		return nil, false
	}
	return destination[:written], true
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	if uncompressedSize <= 0 || uncompressedSize > swarm.MaxCompressedSize {
		return nil, errors.Newf(errors.ErrCodeDecompression,
			"implausible original size hint %d", uncompressedSize)
	}
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeDecompression, "lz4 decompress")
	}
	if read != uncompressedSize {
		return nil, errors.Newf(errors.ErrCodeDecompression,
			"lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}
