// Package codec implements the compressed wire format for health summaries.
//
// # Pipeline
//
// Encoding runs three stages:
//
//  1. Delta: risk and recurrence scores are emitted as raw 32-bit floats;
//     the 32-component anomaly signature is emitted as per-component deltas
//     against the previous message on this stream (absolute values on the
//     first message).
//  2. Quantize: each signature component is clamped to [-1, 1] and mapped to
//     an unsigned byte. The two scalar scores are never quantized.
//  3. Entropy: optional LZ4 block compression of the quantized buffer, with
//     a raw fallback when LZ4 cannot shrink it.
//
// Decoding mirrors the stages exactly and fails explicitly on a truncated
// header or an unknown version byte — a refused decode is better than a
// silently wrong health picture.
//
// # Wire format
//
//	[version: u8 = 1][flags: u8][original size: u16 LE][payload...]
//
// Flag bit 0 marks an entropy-compressed payload. The format is a contract:
// two implementations interoperate with no negotiation beyond the version
// byte.
//
// # Streams
//
// A Compressor holds the previous signature for exactly one logical
// stream. Use one encoder per outbound stream and a separate decoder per
// inbound (peer, stream) pair; sharing an instance across streams corrupts
// the delta baseline. Instances are not safe for concurrent use.
//
// The timestamp is deliberately not carried across the wire: the receiver
// stamps decoded summaries with its own receipt time, saving four to eight
// bytes per message on the constrained link.
package codec
