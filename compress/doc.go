// Package compress provides compression and decompression codecs for sdec's
// encoded full-snapshot payloads.
//
// This package offers multiple compression algorithms optimized for different characteristics
// of snapshot payload data. Compression is applied at the payload level after encoding, providing
// an additional layer of space savings beyond the bit-packed wire encoding.
//
// # Overview
//
// sdec applies a two-stage compression strategy:
//
//  1. **Encoding**: the schema-driven bitstream codec packs fields MSB-first, eliding
//     absent components and unchanged fields
//  2. **Compression**: further reduces the encoded bytes using a general-purpose algorithm
//
// The compress package implements the second stage, supporting multiple algorithms:
//   - None: No compression (fastest, largest)
//   - Zstd: Excellent compression ratio, moderate speed
//   - S2: Balanced compression and speed
//   - LZ4: Fast decompression, moderate compression
//
// Full snapshots are the usual target for this package: they carry every entity and
// every field, so there is real redundancy across entities for a general-purpose
// compressor to exploit. Delta snapshots are already sparse (only changed fields are
// present), so sdec does not offer a compressed path for them — the fixed per-call
// compressor overhead rarely pays for itself on an already-small payload.
//
// # Architecture
//
// The package defines three core interfaces:
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	}
//
// # Supported Algorithms
//
// **NoOp Compression** (format.CompressionNone)
//
//	codec := compress.NewNoOpCompressor()
//	compressed, _ := codec.Compress(data)  // Returns data unchanged
//	original, _ := codec.Decompress(compressed)  // Returns data unchanged
//
// Use when:
//   - Data is already well-compressed by encoding
//   - CPU is more critical than bandwidth
//   - Data is incompressible (random, encrypted)
//
// **Zstandard (Zstd)** (format.CompressionZstd)
//
//	codec := compress.NewZstdCompressor()
//	compressed, _ := codec.Compress(data)  // Best compression ratio
//	original, _ := codec.Decompress(compressed)
//
// Characteristics:
//   - Compression: Excellent
//   - Speed: Moderate (compression: ~400 MB/s, decompression: ~1000 MB/s)
//   - Memory: ~2-4 MB for compression, ~1-2 MB for decompression
//   - Latency: Medium (adds ~0.5-2ms for typical snapshot sizes)
//
// Use when:
//   - Bandwidth cost is the primary concern (e.g. a full-snapshot resync over a
//     constrained uplink)
//   - Can tolerate moderate compression overhead
//
// Best for:
//   - Large full snapshots with many entities (high cross-entity redundancy)
//   - Initial/resync snapshots sent infrequently
//
// **S2 (Snappy Alternative)** (format.CompressionS2)
//
//	codec := compress.NewS2Compressor()
//	compressed, _ := codec.Compress(data)  // Fast with good compression
//	original, _ := codec.Decompress(compressed)
//
// Characteristics:
//   - Compression: Good
//   - Speed: Fast (compression: ~1000 MB/s, decompression: ~2000 MB/s)
//   - Memory: ~256KB for compression, ~64KB for decompression
//   - Latency: Low (adds ~0.2-0.5ms for typical snapshot sizes)
//
// Use when:
//   - Need balance between compression and speed
//   - Latency is important
//
// Best for:
//   - Periodic full-snapshot resyncs on a tick budget
//
// **LZ4** (format.CompressionLZ4)
//
//	codec := compress.NewLZ4Compressor()
//	compressed, _ := codec.Compress(data)  // Very fast decompression
//	original, _ := codec.Decompress(compressed)
//
// Characteristics:
//   - Compression: Moderate
//   - Speed: Very fast decompression (~3000 MB/s), moderate compression (~800 MB/s)
//   - Memory: ~64KB for compression, ~16KB for decompression
//   - Latency: Very low (adds ~0.1-0.3ms for typical snapshot sizes)
//
// Use when:
//   - Decompression speed matters more than compression ratio (e.g. a client
//     decompressing a resync snapshot on a tight frame budget)
//
// # Algorithm Selection Guide
//
// | Scenario                          | Recommended | Reason                         |
// |------------------------------------|-------------|---------------------------------|
// | Bandwidth-constrained uplink       | Zstd        | Best compression ratio          |
// | Periodic resync on a tick budget   | S2          | Balanced speed and compression  |
// | Client decode on a frame budget    | LZ4         | Fastest decompression           |
// | CPU-constrained server             | None        | No compression overhead         |
//
// # Memory Management
//
// Compressor implementations keep allocations down as follows:
//   - Zstd and LZ4 reuse encoder/decoder state through package-level sync.Pools
//   - S2 and NoOp keep no state between calls
//   - Output buffers are allocated per call and owned by the caller
//
// Memory overhead:
//   - NoOp: Zero overhead
//   - LZ4: ~64KB compression, ~16KB decompression
//   - S2: ~256KB compression, ~64KB decompression
//   - Zstd: ~2-4MB compression, ~1-2MB decompression
//
// # Thread Safety
//
// All codec implementations are thread-safe and can be safely shared across goroutines.
// However, for best performance, consider using a codec per goroutine to avoid
// internal lock contention.
//
// # Error Handling
//
// Compression errors are rare but can occur:
//   - Input too large (exceeds algorithm limits)
//   - Memory allocation failure
//
// Decompression errors are more common:
//   - Corrupted compressed data
//   - Invalid compression format
//   - Decompressed size exceeds limits
//
// # Integration with sdec.Endpoint
//
// Most callers never touch this package directly — sdec.Endpoint wires a Codec in
// via sdec.WithCompression:
//
//	endpoint, _ := sdec.NewEndpoint(s, sdec.WithCompression(format.CompressionZstd))
//
//	data, _ := endpoint.EncodeFullSnapshotCompressed(tick, entities)
//	snap, _ := endpoint.DecodeFullSnapshotCompressed(data)
//
// # Advanced Usage
//
// For custom compression needs, implement the Compressor/Decompressor interfaces
// directly and pass a value satisfying Codec wherever this package's Codec is
// expected:
//
//	type MyCodec struct{}
//
//	func (c *MyCodec) Compress(data []byte) ([]byte, error) {
//	    // Custom compression logic
//	    return compressedData, nil
//	}
//
//	func (c *MyCodec) Decompress(data []byte) ([]byte, error) {
//	    // Custom decompression logic
//	    return originalData, nil
//	}
package compress
