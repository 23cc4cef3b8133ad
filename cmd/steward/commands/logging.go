package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"steward/internal/config"
)

var logSink struct {
	mu   sync.Mutex
	file *os.File
}

// configureLogger installs the process-wide slog handler. In chat mode the
// terminal belongs to the conversation, so without a log file configured the
// logs are discarded rather than interleaved with the REPL.
func configureLogger(cfg *config.Config, overrideLevel string, chatMode bool) error {
	level, err := parseLogLevel(cfg.Log.Level, overrideLevel)
	if err != nil {
		return err
	}

	writer, err := openLogWriter(strings.TrimSpace(cfg.Log.File), chatMode)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})))
	return nil
}

func openLogWriter(path string, chatMode bool) (io.Writer, error) {
	logSink.mu.Lock()
	defer logSink.mu.Unlock()

	if logSink.file != nil && (path == "" || logSink.file.Name() != path) {
		_ = logSink.file.Close()
		logSink.file = nil
	}

	if path == "" {
		if chatMode {
			return io.Discard, nil
		}
		return os.Stderr, nil
	}

	if logSink.file == nil {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logSink.file = f
	}
	return logSink.file, nil
}

func parseLogLevel(configLevel, override string) (slog.Level, error) {
	level := strings.TrimSpace(configLevel)
	if o := strings.TrimSpace(override); o != "" {
		level = o
	}
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}
