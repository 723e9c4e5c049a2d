package emotion

import (
	"context"
	"encoding/base64"
	"time"

	"google.golang.org/genai"

	gemclient "github.com/directors-cut/server/internal/gemini"
	logx "github.com/directors-cut/server/pkg/logger"
)

// Classifier turns a webcam frame into an emotion reading. Implementations
// must degrade internally: classification never fails from the caller's
// point of view, it yields a neutral reading instead.
type Classifier interface {
	Classify(ctx context.Context, frameBase64 string) Reading
}

const classifyPrompt = `Analyze this webcam image of a person watching a film.
Return ONLY a JSON object with these exact fields:
{
  "primary_emotion": one of "engaged","bored","confused","amused","tense","surprised","neutral",
  "intensity": integer 1-10,
  "attention": one of "screen","away","uncertain",
  "confidence": float 0.0-1.0
}
No other text. Only the JSON object.`

// GeminiClassifier classifies frames with a Gemini vision call.
type GeminiClassifier struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClassifier wires the classifier onto the shared client bundle.
func NewGeminiClassifier(clients *gemclient.Clients) *GeminiClassifier {
	return &GeminiClassifier{
		client:      clients.Client,
		model:       clients.Config.ClassifierModel,
		temperature: clients.Config.ClassifierTemperature,
	}
}

type readingPayload struct {
	PrimaryEmotion Type      `json:"primary_emotion"`
	Intensity      int       `json:"intensity"`
	Attention      Attention `json:"attention"`
	Confidence     float64   `json:"confidence"`
}

// Classify sends the JPEG frame to Gemini and decodes the structured reading.
// Every failure path — bad input, transport, malformed or out-of-range
// response — logs and returns the neutral fallback.
func (c *GeminiClassifier) Classify(ctx context.Context, frameBase64 string) Reading {
	frame, err := base64.StdEncoding.DecodeString(frameBase64)
	if err != nil {
		logx.Warn().Err(err).Msg("classify: frame is not valid base64")
		return NeutralReading()
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(frame, "image/jpeg"),
			genai.NewPartFromText(classifyPrompt),
		}, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("classify: gemini call failed")
		return NeutralReading()
	}

	var payload readingPayload
	if err := gemclient.DecodeJSON(resp.Text(), &payload); err != nil {
		logx.Error().Err(err).Msg("classify: undecodable response")
		return NeutralReading()
	}

	reading := Reading{
		PrimaryEmotion: payload.PrimaryEmotion,
		Intensity:      payload.Intensity,
		Attention:      payload.Attention,
		Confidence:     payload.Confidence,
		Timestamp:      time.Now(),
	}
	if err := reading.Validate(); err != nil {
		logx.Error().Err(err).Msg("classify: response failed validation")
		return NeutralReading()
	}
	return reading
}
