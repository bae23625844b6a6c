package scoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/okian/oratora/internal/domain/model"
)

const (
	defaultGeminiModel   = "gemini-2.5-pro"
	defaultGeminiTimeout = 90 * time.Second
	jsonMIMEType         = "application/json"
)

// GeminiOption configures a GeminiScorer.
type GeminiOption func(*geminiConfig)

type geminiConfig struct {
	model      string
	timeout    time.Duration
	baseURL    string
	httpClient *http.Client
}

// WithModel selects the Gemini model.
func WithModel(name string) GeminiOption {
	return func(c *geminiConfig) {
		if name != "" {
			c.model = name
		}
	}
}

// WithTimeout bounds each GenerateContent call.
func WithTimeout(d time.Duration) GeminiOption {
	return func(c *geminiConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBaseURL points the client at a different endpoint (a proxy or a test server).
func WithBaseURL(u string) GeminiOption {
	return func(c *geminiConfig) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) GeminiOption {
	return func(c *geminiConfig) { c.httpClient = hc }
}

// GeminiScorer is a Client backed by the Gemini API. Audio is sent inline
// next to the prompt and the reply is constrained to the game's JSON schema.
type GeminiScorer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ Client = (*GeminiScorer)(nil)

// NewGeminiScorer creates a Gemini-backed scorer.
func NewGeminiScorer(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiScorer, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := geminiConfig{model: defaultGeminiModel, timeout: defaultGeminiTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiScorer{client: client, model: cfg.model, timeout: cfg.timeout}, nil
}

// Score sends the prompt and audio to Gemini and returns the JSON text of the reply.
func (g *GeminiScorer) Score(ctx context.Context, req Request) ([]byte, error) {
	schema, ok := responseSchemas[req.Game]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, req.Game)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Audio) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Audio, req.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: jsonMIMEType,
		ResponseSchema:   schema,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %w", ErrScoringFailed, err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return []byte(text), nil
}

func numberProp(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: desc}
}

func integerProp(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: desc}
}

func stringProp(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func stringList(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: desc}
}

func criterionSchema(scoreDesc, feedbackDesc string, extra map[string]*genai.Schema) *genai.Schema {
	props := map[string]*genai.Schema{
		"score":    numberProp(scoreDesc),
		"feedback": stringProp(feedbackDesc),
	}
	required := []string{"score", "feedback"}
	for k, v := range extra {
		props[k] = v
		required = append(required, k)
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

func objectSchema(props map[string]*genai.Schema) *genai.Schema {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

var responseSchemas = map[model.GameType]*genai.Schema{
	model.GameRapidFire: objectSchema(map[string]*genai.Schema{
		model.SkillResponseRate: criterionSchema("Score from 1-10, or 0 for no speech.", "Brief, specific advice for response rate.", nil),
		model.SkillPace:         criterionSchema("Score from 1-10 for pace and flow.", "Brief, specific advice for pace and flow.", nil),
		model.SkillEnergy:       criterionSchema("Score from 1-10 for energy and confidence.", "Brief, specific advice for energy and confidence.", nil),
	}),
	model.GameConductor: objectSchema(map[string]*genai.Schema{
		model.SkillResponseSpeed:     criterionSchema("Score from 1-10 for adapting to energy changes.", "Feedback on response speed.", nil),
		model.SkillEnergyRange:       criterionSchema("Score from 1-10 for the energy range demonstrated.", "Feedback on voice energy modulation.", nil),
		model.SkillContentContinuity: criterionSchema("Score from 1-10 for topic focus.", "Feedback on content continuity.", nil),
		model.SkillBreathRecovery:    criterionSchema("Score from 1-10 for use of breath moments.", "Feedback on breath recovery.", nil),
		model.SkillOverallPerformance: objectSchema(map[string]*genai.Schema{
			"score":   numberProp("Overall score from 1-10."),
			"summary": stringProp("Overall summary of performance."),
		}),
	}),
	model.GameTripleStep: {
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			model.SkillPrimary: criterionSchema("Score from 1-10 for speaking the words within the time limit.", "Feedback on word integration and timing.",
				map[string]*genai.Schema{
					"wordsIntegrated": integerProp("Number of words integrated."),
					"wordsMissed":     integerProp("Number of words missed."),
				}),
			model.SkillSecondary: criterionSchema("Score from 1-10 for smooth integration.", "Feedback on integration smoothness.",
				map[string]*genai.Schema{
					"smoothIntegrations":  stringList("Smoothly integrated words."),
					"awkwardIntegrations": stringList("Awkwardly integrated words."),
				}),
			model.SkillTertiary: criterionSchema("Score from 1-10 for topic coherence.", "Feedback on coherence.",
				map[string]*genai.Schema{
					"coherenceLevel": stringProp("Excellent, Good, Fair, or Poor."),
				}),
			model.SkillRecovery: criterionSchema("Score from 1-10 for handling difficult words.", "Feedback on recovery.",
				map[string]*genai.Schema{
					"recoveryStrategies": stringList("Recovery strategies used."),
				}),
			model.SkillOverall: criterionSchema("Overall score from 1-10.", "Overall summary and recommendations.",
				map[string]*genai.Schema{
					"strengths":           stringList("Key strengths."),
					"areasForImprovement": stringList("Areas for improvement."),
				}),
			"wordVerification": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"perWord": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"word":                 {Type: genai.TypeString},
								"presentInTranscript":  {Type: genai.TypeBoolean},
								"presentInAudioLikely": {Type: genai.TypeBoolean},
								"matchConfidence":      {Type: genai.TypeNumber},
								"exampleSentence":      {Type: genai.TypeString},
							},
							Required: []string{"word", "presentInTranscript", "presentInAudioLikely", "matchConfidence"},
						},
					},
					"integratedWordsDetected": stringList(""),
					"missedWordsDetected":     stringList(""),
				},
			},
		},
		Required: []string{model.SkillPrimary, model.SkillSecondary, model.SkillTertiary, model.SkillRecovery, model.SkillOverall},
	},
}
