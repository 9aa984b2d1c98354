package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

const (
	defaultLogDir  = "/var/log/liveticker"
	defaultLogFile = "api.log"
	// stdoutOnly as LogDir disables the log file.
	stdoutOnly = "-"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogging points the standard logger and gin's request log at stdout and
// cfg.LogDir/filename. The returned Closer releases the log file.
func SetupLogging(cfg Config, filename string) (io.Closer, error) {
	w, closer, err := openLogWriter(cfg.LogDir, filename)
	if err != nil {
		return nil, err
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(w)
	gin.DefaultWriter = w
	gin.DefaultErrorWriter = w
	return closer, nil
}

func openLogWriter(dir, filename string) (io.Writer, io.Closer, error) {
	if dir == stdoutOnly {
		return os.Stdout, nopCloser{}, nil
	}
	if dir == "" {
		dir = defaultLogDir
	}
	if filename == "" {
		filename = defaultLogFile
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return io.MultiWriter(os.Stdout, f), f, nil
}
