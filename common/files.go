package common

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ZstdSuffix marks files that are transparently zstd-compressed.
const ZstdSuffix = ".zst"

// IsCompressed reports whether path names a zstd-compressed file.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ZstdSuffix)
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenFile opens path for reading, decompressing it if it ends in ".zst".
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}

	dec, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &readCloser{
		Reader: dec,
		closers: []func() error{
			func() error { dec.Close(); return nil },
			f.Close,
		},
	}, nil
}

type writeCloser struct {
	io.Writer
	closers []func() error
}

func (w *writeCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CreateFile creates (or truncates) path for writing, compressing the
// content with zstd if the path ends in ".zst". Close must be called to
// flush all data.
func CreateFile(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriter(f)
	if !IsCompressed(path) {
		return &writeCloser{
			Writer:  buf,
			closers: []func() error{buf.Flush, f.Close},
		}, nil
	}

	enc, err := zstd.NewWriter(buf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &writeCloser{
		Writer:  enc,
		closers: []func() error{enc.Close, buf.Flush, f.Close},
	}, nil
}
