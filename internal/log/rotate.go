package log

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for log files.
const (
	DefaultMaxSizeMB  = 20
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 28
)

// RotatingWriter is an io.WriteCloser that rotates the file it writes to
// once it grows past a size limit.
type RotatingWriter struct {
	*lumberjack.Logger
}

// NewRotatingWriter returns a writer appending to path, rotating at
// DefaultMaxSizeMB and keeping DefaultMaxBackups compressed old files.
// The parent directory is created if needed.
func NewRotatingWriter(path string) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	return &RotatingWriter{
		Logger: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    DefaultMaxSizeMB,
			MaxBackups: DefaultMaxBackups,
			MaxAge:     DefaultMaxAgeDays,
			Compress:   true,
		},
	}, nil
}

var _ io.WriteCloser = (*RotatingWriter)(nil)
