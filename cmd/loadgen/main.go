package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/oratora/internal/loadgen"
)

// Default configuration constants.
const (
	defaultSessions    = 30
	defaultPrompts     = 5
	defaultWorkers     = 8
	defaultTimeout     = 30 * time.Second
	defaultPoll        = 500 * time.Millisecond
	defaultPollTimeout = 5 * time.Minute
	defaultRunTimeout  = 30 * time.Minute
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 1 when the run could not complete,
// 2 when any session failed or timed out.
func run() int {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		sessions    = flag.Int("sessions", defaultSessions, "Number of sessions to play")
		prompts     = flag.Int("prompts", defaultPrompts, "Prompts per rapid-fire session")
		workers     = flag.Int("workers", defaultWorkers, "Sessions played concurrently")
		userID      = flag.String("user", "", "userId attached to every session")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		poll        = flag.Duration("poll", defaultPoll, "Delay between status polls")
		pollTimeout = flag.Duration("poll-timeout", defaultPollTimeout, "Give up on a session after this long")
		logFile     = flag.String("log", "", "Log file (default: loadgen_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Log every session outcome")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return 0
	}

	closer, err := loadgen.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:      *baseURL,
		Sessions:     *sessions,
		Prompts:      *prompts,
		Workers:      *workers,
		Timeout:      *timeout,
		PollInterval: *poll,
		PollTimeout:  *pollTimeout,
		UserID:       *userID,
		Verbose:      *verbose,
	}
	stats, err := loadgen.Run(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		return 1
	}
	if stats.Failed > 0 || stats.TimedOut > 0 {
		return 2
	}
	return 0
}
