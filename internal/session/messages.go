package session

import (
	"encoding/json"

	"github.com/directors-cut/server/internal/emotion"
	"github.com/directors-cut/server/internal/pipeline"
)

// Inbound and outbound message type tags.
const (
	TypeStart    = "start"
	TypeReset    = "reset"
	TypeFrame    = "frame"
	TypeEmotion  = "emotion"
	TypeScene    = "scene"
	TypeDeciding = "deciding"
	TypeComplete = "complete"
	TypeError    = "error"
)

// Envelope is the inbound message shape. Data carries a base64 JPEG string
// for "frame" and a pre-computed reading object for "emotion".
type Envelope struct {
	Type  string          `json:"type"`
	Genre string          `json:"genre,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SceneEvent struct {
	Type   string                `json:"type"`
	Assets *pipeline.SceneAssets `json:"assets"`
}

type EmotionEvent struct {
	Type string          `json:"type"`
	Data emotion.Reading `json:"data"`
}

type StatusEvent struct {
	Type string `json:"type"`
}

type CompleteEvent struct {
	Type         string   `json:"type"`
	Ending       string   `json:"ending"`
	ScenesPlayed []string `json:"scenes_played"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
