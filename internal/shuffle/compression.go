package shuffle

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names accepted in configuration.
const (
	CodecNone = "none"
	CodecLZ4  = "lz4"
	CodecZstd = "zstd"
)

// Compressor wraps partition file streams with a compression codec.
type Compressor interface {
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
	Name() string
	// Extension is appended to partition file names.
	Extension() string
}

// noneCompressor stores partition files uncompressed
type noneCompressor struct{}

func (noneCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) { return nopWriteCloser{w}, nil }
func (noneCompressor) NewReader(r io.Reader) (io.ReadCloser, error)  { return io.NopCloser(r), nil }
func (noneCompressor) Name() string                                  { return CodecNone }
func (noneCompressor) Extension() string                             { return "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// LZ4Compressor implements LZ4 frame compression
type LZ4Compressor struct{}

// NewWriter compresses everything written to w
func (LZ4Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

// NewReader decompresses r
func (LZ4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// Name returns the codec name
func (LZ4Compressor) Name() string { return CodecLZ4 }

// Extension returns the file suffix
func (LZ4Compressor) Extension() string { return ".lz4" }

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct{}

// NewWriter compresses everything written to w
func (ZstdCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return enc, nil
}

// NewReader decompresses r
func (ZstdCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return dec.IOReadCloser(), nil
}

// Name returns the codec name
func (ZstdCompressor) Name() string { return CodecZstd }

// Extension returns the file suffix
func (ZstdCompressor) Extension() string { return ".zst" }

// CompressorFor returns the compressor registered under name.
func CompressorFor(name string) (Compressor, error) {
	switch name {
	case CodecNone, "":
		return noneCompressor{}, nil
	case CodecLZ4:
		return LZ4Compressor{}, nil
	case CodecZstd:
		return ZstdCompressor{}, nil
	}
	return nil, fmt.Errorf("unsupported compression type: %q", name)
}

// TransferStats tracks partition bytes moved through a fetcher or writer
type TransferStats struct {
	mu            sync.Mutex
	FilesWritten  int64
	FilesRead     int64
	BytesWritten  int64
	BytesRead     int64
	FetchFailures int64
}

func (s *TransferStats) recordWrite(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesWritten++
	s.BytesWritten += bytes
}

func (s *TransferStats) recordRead(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesRead++
	s.BytesRead += bytes
}

func (s *TransferStats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FetchFailures++
}

// Snapshot returns a copy of the counters.
func (s *TransferStats) Snapshot() TransferStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TransferStats{
		FilesWritten:  s.FilesWritten,
		FilesRead:     s.FilesRead,
		BytesWritten:  s.BytesWritten,
		BytesRead:     s.BytesRead,
		FetchFailures: s.FetchFailures,
	}
}
