package loader

import (
	"fmt"
	"io"
	"os"

	"chordmap/config"
)

// TextSource supplies the whole bindings text for one load.
type TextSource interface {
	Read() ([]byte, error)
}

// FileSource reads a file, at most one byte past config.MaxTextSize so the
// parser can report truncation.
type FileSource struct {
	Path string
}

func (f FileSource) Read() ([]byte, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open bindings: %w", err)
	}
	defer fh.Close()

	b, err := io.ReadAll(io.LimitReader(fh, config.MaxTextSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return b, nil
}

func (f FileSource) String() string { return f.Path }

// StaticSource always returns the same text.
type StaticSource []byte

func (s StaticSource) Read() ([]byte, error) { return s, nil }
