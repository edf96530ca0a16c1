// Package logger wires the global zerolog logger to stdout and a log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const timeFormat = "2006-01-02 15:04:05"

// Console switches the global logger to human-readable stdout output.
// Used before the config (and its log file path) is known.
func Console() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(consoleWriter(os.Stdout)).With().Timestamp().Logger()
}

// Setup sends log lines to stdout and appends them to file. The returned
// closer flushes the file; callers defer it.
func Setup(file, level string) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	writers := []io.Writer{consoleWriter(os.Stdout)}
	var closer io.Closer = nopCloser{}

	if file != "" {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		fileWriter := consoleWriter(f)
		fileWriter.NoColor = true
		writers = append(writers, fileWriter)
		closer = f
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer, nil
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
