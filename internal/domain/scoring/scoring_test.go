package scoring_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	scoring "github.com/okian/oratora/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSimulatedScorer(t *testing.T) {
	Convey("Given a fast simulated scorer", t, func() {
		s := scoring.NewSimulatedScorer(scoring.WithLatencyRange(0, time.Millisecond), scoring.WithSeed(7))
		ctx := context.Background()

		Convey("it produces output every game can decode", func() {
			for _, gt := range model.GameTypes {
				raw, err := s.Score(ctx, scoring.Request{Game: gt, Audio: []byte{1, 2, 3}})
				So(err, ShouldBeNil)
				eval, err := games.MustFor(gt).Decode(raw)
				So(err, ShouldBeNil)
				for _, v := range eval.Scores() {
					So(v, ShouldBeBetweenOrEqual, 4, 9)
				}
			}
		})

		Convey("silent audio scores zero", func() {
			raw, err := s.Score(ctx, scoring.Request{Game: model.GameRapidFire})
			So(err, ShouldBeNil)
			eval, err := games.RapidFire{}.Decode(raw)
			So(err, ShouldBeNil)
			So(eval.Overall(), ShouldEqual, 0)
		})

		Convey("unknown games are rejected", func() {
			_, err := s.Score(ctx, scoring.Request{Game: "charades"})
			So(errors.Is(err, scoring.ErrUnsupported), ShouldBeTrue)
		})
	})

	Convey("Given a scorer that always fails", t, func() {
		s := scoring.NewSimulatedScorer(scoring.WithLatencyRange(0, 0), scoring.WithFailureRate(1))
		_, err := s.Score(context.Background(), scoring.Request{Game: model.GameConductor, Audio: []byte{1}})
		So(errors.Is(err, scoring.ErrScoringFailed), ShouldBeTrue)
	})

	Convey("Given a slow scorer and a cancelled context", t, func() {
		s := scoring.NewSimulatedScorer(scoring.WithLatencyRange(time.Hour, time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Score(ctx, scoring.Request{Game: model.GameConductor})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestClientFunc(t *testing.T) {
	Convey("ClientFunc adapts a function", t, func() {
		var c scoring.Client = scoring.ClientFunc(func(_ context.Context, req scoring.Request) ([]byte, error) {
			return []byte(req.Prompt), nil
		})
		out, err := c.Score(context.Background(), scoring.Request{Prompt: "hi"})
		So(err, ShouldBeNil)
		So(string(out), ShouldEqual, "hi")
	})
}

func geminiReply(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": text}},
			},
		}},
	})
	return string(body)
}

func TestGeminiScorer(t *testing.T) {
	Convey("Given a fake Gemini endpoint", t, func() {
		var gotPath, gotBody string
		reply := geminiReply(`{"responseRate":{"score":8,"feedback":"a"},"pace":{"score":7,"feedback":"b"},"energy":{"score":6,"feedback":"c"}}`)
		status := http.StatusOK
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, reply)
		}))
		Reset(srv.Close)

		ctx := context.Background()
		g, err := scoring.NewGeminiScorer(ctx, "test-key",
			scoring.WithBaseURL(srv.URL),
			scoring.WithModel("gemini-test"),
			scoring.WithTimeout(5*time.Second),
			scoring.WithHTTPClient(srv.Client()),
		)
		So(err, ShouldBeNil)

		Convey("a rapid-fire request carries prompt, audio and schema", func() {
			raw, err := g.Score(ctx, scoring.Request{
				Game:     model.GameRapidFire,
				Prompt:   "evaluate this",
				Audio:    []byte("RIFF"),
				MIMEType: "audio/wav",
			})
			So(err, ShouldBeNil)
			So(gotPath, ShouldContainSubstring, "gemini-test:generateContent")
			So(gotBody, ShouldContainSubstring, "evaluate this")
			So(gotBody, ShouldContainSubstring, "audio/wav")
			So(gotBody, ShouldContainSubstring, "responseSchema")
			So(gotBody, ShouldContainSubstring, "HARM_CATEGORY_HARASSMENT")

			eval, err := games.RapidFire{}.Decode(raw)
			So(err, ShouldBeNil)
			So(eval.Scores()[model.SkillResponseRate], ShouldEqual, 8)
		})

		Convey("a triple-step schema asks for whole-number word counts", func() {
			_, err := g.Score(ctx, scoring.Request{Game: model.GameTripleStep, Prompt: "p"})
			So(err, ShouldBeNil)
			var body any
			So(json.Unmarshal([]byte(gotBody), &body), ShouldBeNil)
			for _, field := range []string{"wordsIntegrated", "wordsMissed"} {
				prop := findKey(body, field)
				So(prop, ShouldNotBeNil)
				So(prop["type"], ShouldEqual, "INTEGER")
			}
		})

		Convey("an empty candidate list is an empty response", func() {
			reply = `{"candidates":[]}`
			_, err := g.Score(ctx, scoring.Request{Game: model.GameConductor, Prompt: "p"})
			So(errors.Is(err, scoring.ErrEmptyResponse), ShouldBeTrue)
		})

		Convey("an upstream error is a scoring failure", func() {
			status = http.StatusBadRequest
			reply = `{"error":{"code":400,"message":"bad audio","status":"INVALID_ARGUMENT"}}`
			_, err := g.Score(ctx, scoring.Request{Game: model.GameTripleStep, Prompt: "p"})
			So(errors.Is(err, scoring.ErrScoringFailed), ShouldBeTrue)
		})

		Convey("unknown games never reach the network", func() {
			gotPath = ""
			_, err := g.Score(ctx, scoring.Request{Game: "charades"})
			So(errors.Is(err, scoring.ErrUnsupported), ShouldBeTrue)
			So(gotPath, ShouldBeEmpty)
		})
	})

	Convey("An API key is required", t, func() {
		_, err := scoring.NewGeminiScorer(context.Background(), "")
		So(errors.Is(err, scoring.ErrMissingAPIKey), ShouldBeTrue)
	})
}

// findKey returns the first object stored under key anywhere in v.
func findKey(v any, key string) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if m, ok := t[key].(map[string]any); ok {
			return m
		}
		for _, c := range t {
			if m := findKey(c, key); m != nil {
				return m
			}
		}
	case []any:
		for _, c := range t {
			if m := findKey(c, key); m != nil {
				return m
			}
		}
	}
	return nil
}
