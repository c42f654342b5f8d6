package compression

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
)

// DefaultThreshold is the payload size from which compression pays off.
const DefaultThreshold = 1024 // 1KB

// ErrTooLarge is returned when a payload inflates past the caller's limit.
var ErrTooLarge = errors.New("compression: decompressed payload exceeds limit")

// Compress gzips data when it is at least threshold bytes long. The boolean
// reports whether the returned bytes are compressed. A threshold <= 0 disables
// compression.
func Compress(data []byte, threshold int) ([]byte, bool, error) {
	if threshold <= 0 || len(data) < threshold {
		return data, false, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, false, err
	}
	if err := zw.Close(); err != nil {
		return nil, false, err
	}

	// incompressible payloads (most images) are sent as is
	if buf.Len() >= len(data) {
		return data, false, nil
	}
	return buf.Bytes(), true, nil
}

// Decompress inflates gzip data, refusing output longer than limit bytes.
// A limit <= 0 means no limit.
func Decompress(data []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var r io.Reader = zr
	if limit > 0 {
		r = io.LimitReader(zr, limit+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, ErrTooLarge
	}
	return out, nil
}
