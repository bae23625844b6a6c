package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/pkg/logger"
)

// Submission retry settings for backpressure replies.
const (
	maxSubmitAttempts = 3
	promptAudioMS     = 1500
	recordingAudioMS  = 4000
)

var gameRotation = []model.GameType{model.GameRapidFire, model.GameConductor, model.GameTripleStep}

// Run checks the service is healthy, plays cfg.Sessions sessions with
// cfg.Workers in flight and waits for each to reach a terminal status.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("loadgen")
	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("workers", cfg.Workers),
		logger.Int("prompts", cfg.Prompts),
	)

	c := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := c.Get(ctx, "/healthz", nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	p := &player{cfg: cfg, client: c, log: log}
	stats := &Stats{PerGame: make(map[model.GameType]int)}
	var mu sync.Mutex

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := 0; i < cfg.Sessions; i++ {
		game := gameRotation[i%len(gameRotation)]
		g.Go(func() error {
			o := p.play(gctx, game)
			if cfg.Verbose || o.Err != nil {
				log.Info(gctx, "session finished",
					logger.String("sessionId", o.SessionID),
					logger.String("game", string(o.Game)),
					logger.String("status", string(o.Status)),
					logger.Duration("latency", o.Latency),
					logger.Any("error", o.Err),
				)
			}
			mu.Lock()
			stats.add(o)
			mu.Unlock()
			return gctx.Err()
		})
	}
	err := g.Wait()
	stats.Duration = time.Since(start)

	log.Info(ctx, "final statistics",
		logger.Int("sessions", stats.Sessions),
		logger.Int("completed", stats.Completed),
		logger.Int("failed", stats.Failed),
		logger.Int("timedOut", stats.TimedOut),
		logger.Int("submissions", stats.Submissions),
		logger.Int("rejected", stats.Rejected),
		logger.Duration("meanLatency", stats.MeanLatency),
		logger.Duration("maxLatency", stats.MaxLatency),
		logger.Duration("duration", stats.Duration),
	)
	if err != nil {
		return stats, fmt.Errorf("load run interrupted: %w", err)
	}
	return stats, nil
}

type player struct {
	cfg    *Config
	client *Client
	log    logger.Logger
}

type sessionView struct {
	Status    model.Status `json:"status"`
	Completed int          `json:"completed"`
	Expected  int          `json:"expected"`
}

func (p *player) play(ctx context.Context, game model.GameType) Outcome {
	o := Outcome{SessionID: "lg-" + uuid.NewString(), Game: game}
	start := time.Now()

	var err error
	switch game {
	case model.GameRapidFire:
		err = p.rapidFire(ctx, &o)
	case model.GameConductor:
		err = p.conductor(ctx, &o)
	case model.GameTripleStep:
		err = p.tripleStep(ctx, &o)
	}
	if err != nil {
		o.Err = err
		return o
	}

	st, err := p.poll(ctx, game, o.SessionID)
	if err != nil {
		o.Err = err
		return o
	}
	o.Status = st
	if st != "" {
		o.Latency = time.Since(start)
	}
	return o
}

func (p *player) rapidFire(ctx context.Context, o *Outcome) error {
	audio := ToneWAV(promptAudioMS)
	for i := 1; i <= p.cfg.Prompts; i++ {
		fields := map[string]string{
			"sessionId":    o.SessionID,
			"userId":       p.cfg.UserID,
			"prompt":       "Describe your favourite place in one sentence",
			"promptIndex":  strconv.Itoa(i),
			"totalPrompts": strconv.Itoa(p.cfg.Prompts),
			"difficulty":   "medium",
			"seconds":      "5",
			"responseTime": "1.2",
			"totalTime":    "4.8",
		}
		if err := p.submit(ctx, o, "/api/v1/games/rapid-fire/evaluate", fields, "prompt.wav", audio); err != nil {
			return fmt.Errorf("prompt %d: %w", i, err)
		}
	}
	return nil
}

func (p *player) conductor(ctx context.Context, o *Outcome) error {
	const base = "/api/v1/games/conductor/"
	start := map[string]any{"sessionId": o.SessionID, "userId": p.cfg.UserID, "topic": "Why cities need more parks", "duration": 1}
	if err := p.client.PostJSON(ctx, base+"start", start, nil); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	for i, level := range []int{4, 8, 6} {
		cue := map[string]any{"sessionId": o.SessionID, "energyLevel": level, "timestamp": (i + 1) * 1000}
		if err := p.client.PostJSON(ctx, base+"energy-change", cue, nil); err != nil {
			return fmt.Errorf("energy change: %w", err)
		}
	}
	breath := map[string]any{"sessionId": o.SessionID, "timestamp": 2500}
	if err := p.client.PostJSON(ctx, base+"breath-moment", breath, nil); err != nil {
		return fmt.Errorf("breath moment: %w", err)
	}
	return p.submit(ctx, o, base+"end", map[string]string{"sessionId": o.SessionID}, "recording.webm", ToneWAV(recordingAudioMS))
}

func (p *player) tripleStep(ctx context.Context, o *Outcome) error {
	words, _ := json.Marshal([]string{"river", "lantern", "orbit"})
	used, _ := json.Marshal([]string{"river", "orbit"})
	missed, _ := json.Marshal([]string{"lantern"})
	fields := map[string]string{
		"sessionId":       o.SessionID,
		"userId":          p.cfg.UserID,
		"topic":           "A journey you remember",
		"wordList":        string(words),
		"integratedWords": string(used),
		"missedWords":     string(missed),
		"transcription":   "We followed the river until the orbit of the moon rose.",
		"totalTime":       "60",
		"actualTime":      "52",
		"completedEarly":  "true",
	}
	return p.submit(ctx, o, "/api/v1/games/triple-step/evaluate", fields, "recording.webm", ToneWAV(recordingAudioMS))
}

// submit posts one recording, backing off and retrying while the queue
// answers with backpressure.
func (p *player) submit(ctx context.Context, o *Outcome, path string, fields map[string]string, filename string, audio []byte) error {
	var err error
	for attempt := 0; attempt < maxSubmitAttempts; attempt++ {
		err = p.client.PostAudio(ctx, path, fields, filename, audio, nil)
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
			break
		}
		o.Rejected++
		if werr := sleep(ctx, p.cfg.PollInterval*time.Duration(attempt+1)); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	o.Submitted++
	return nil
}

// poll returns the terminal status, or "" when PollTimeout elapses first.
func (p *player) poll(ctx context.Context, game model.GameType, id string) (model.Status, error) {
	deadline := time.Now().Add(p.cfg.PollTimeout)
	rules, err := games.For(game)
	if err != nil {
		return "", err
	}
	path := "/api/v1/games/" + string(game) + "/session/" + id
	for {
		var v sessionView
		if err := p.client.Get(ctx, path, &v); err != nil {
			return "", fmt.Errorf("poll: %w", err)
		}
		if rules.Terminal(v.Status) {
			return v.Status, nil
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		if err := sleep(ctx, p.cfg.PollInterval); err != nil {
			return "", err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
