package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/oratora/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging sends JSON logs to stdout and to logFile. An empty logFile
// gets a timestamped name.
func SetupLogging(logFile string) (io.Closer, error) {
	if logFile == "" {
		logFile = "loadgen_" + time.Now().Format("20060102_150405") + ".log"
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithFormat(logger.FormatJSON, io.MultiWriter(os.Stdout, f)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return f, nil
}

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	os.Stdout.WriteString(`Oratora Load Generator
======================

Plays synthetic rapid-fire, conductor and triple-step sessions against a
running server and waits for every evaluation to land.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -sessions int
        Number of sessions to play, rotated across the three games (default 30)
  -prompts int
        Prompts per rapid-fire session (default 5)
  -workers int
        Sessions played concurrently (default 8)
  -user string
        userId attached to every session, enabling history and analytics
  -timeout duration
        HTTP request timeout (default 30s)
  -poll duration
        Delay between status polls (default 500ms)
  -poll-timeout duration
        Give up on a session after this long (default 5m)
  -log string
        Log file (default: loadgen_TIMESTAMP.log)
  -verbose
        Log every session outcome
  -help
        Show this help message

Examples:
  go run ./cmd/loadgen -sessions 90 -workers 16
  go run ./cmd/loadgen -user demo -verbose
`)
}
