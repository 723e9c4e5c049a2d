package gemini

import (
	"context"
	"fmt"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	logx "github.com/directors-cut/server/pkg/logger"
)

// Config selects the Gemini models backing each collaborator. Model names and
// sampling parameters are deployment knobs, not behavior.
type Config struct {
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	ClassifierModel       string  `envconfig:"EMOTION_MODEL" default:"gemini-2.5-flash"`
	ClassifierTemperature float32 `envconfig:"EMOTION_TEMPERATURE" default:"0.3"`

	DirectorModel       string  `envconfig:"DIRECTOR_MODEL" default:"gemini-2.5-pro"`
	DirectorTemperature float32 `envconfig:"DIRECTOR_TEMPERATURE" default:"0.8"`

	NarratorModel       string  `envconfig:"NARRATOR_MODEL" default:"gemini-2.5-flash"`
	NarratorTemperature float32 `envconfig:"NARRATOR_TEMPERATURE" default:"0.8"`

	MaxTokens int `envconfig:"TEXT_MAX_TOKENS" default:"2000"`

	ImageModel  string `envconfig:"IMAGE_MODEL" default:"gemini-2.5-flash-image"`
	SpeechModel string `envconfig:"SPEECH_MODEL" default:"gemini-2.5-flash-preview-tts"`
	SpeechVoice string `envconfig:"SPEECH_VOICE" default:"Charon"`
}

// Clients bundles the raw genai client (binary generation, frame
// classification) with the eino chat models used for text calls.
type Clients struct {
	Client   *genai.Client
	Director *einogemini.ChatModel
	Narrator *einogemini.ChatModel
	Config   Config
}

// NewClients builds the genai client and both chat models.
func NewClients(ctx context.Context, cfg Config) (*Clients, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	director, err := einogemini.NewChatModel(ctx, &einogemini.Config{
		Client:      client,
		Model:       cfg.DirectorModel,
		Temperature: &cfg.DirectorTemperature,
		MaxTokens:   &cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating director model")
		return nil, fmt.Errorf("error creating director model: %w", err)
	}

	narrator, err := einogemini.NewChatModel(ctx, &einogemini.Config{
		Client:      client,
		Model:       cfg.NarratorModel,
		Temperature: &cfg.NarratorTemperature,
		MaxTokens:   &cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating narrator model")
		return nil, fmt.Errorf("error creating narrator model: %w", err)
	}

	return &Clients{
		Client:   client,
		Director: director,
		Narrator: narrator,
		Config:   cfg,
	}, nil
}
