package fetcher

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodeBody reads at most limit decoded bytes from body, undoing the given
// Content-Encoding. It reports whether the body was cut at the limit.
func decodeBody(body io.Reader, encoding string, limit int64) ([]byte, bool, error) {
	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, false, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(body)
	case "deflate":
		// Servers send either zlib-wrapped or raw deflate under this name.
		buffered := bufio.NewReader(body)
		if hasZlibHeader(buffered) {
			zr, err := zlib.NewReader(buffered)
			if err != nil {
				return nil, false, fmt.Errorf("deflate decode: %w", err)
			}
			defer zr.Close()
			reader = zr
		} else {
			fl := flate.NewReader(buffered)
			defer fl.Close()
			reader = fl
		}
	default:
		reader = body
	}

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// hasZlibHeader peeks at the RFC 1950 header: deflate method and a valid check value.
func hasZlibHeader(r *bufio.Reader) bool {
	b, err := r.Peek(2)
	if err != nil {
		return false
	}
	return b[0]&0x0F == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}
