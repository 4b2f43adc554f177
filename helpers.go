package imagepick

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// EncodeBase64 encodes bytes to base64 string.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DirSink writes images into Dir, creating it on first use.
type DirSink struct {
	Dir string
}

// Store implements Sink. Only the base name of filename is used.
func (s DirSink) Store(_ context.Context, filename string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("imagepick: create %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // images are meant to be readable
		return fmt.Errorf("imagepick: write %s: %w", path, err)
	}
	return nil
}
