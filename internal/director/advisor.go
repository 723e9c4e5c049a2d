package director

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	gemclient "github.com/directors-cut/server/internal/gemini"
)

// chatModel is the slice of the eino chat-model surface the advisor needs.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// GeminiAdvisor asks a Gemini chat model to confirm or override the
// emotion-mapped branch selection.
type GeminiAdvisor struct {
	cm chatModel
}

// NewGeminiAdvisor wires the advisor onto the shared client bundle.
func NewGeminiAdvisor(clients *gemclient.Clients) *GeminiAdvisor {
	return &GeminiAdvisor{cm: clients.Director}
}

// Advise runs the advisory call and decodes the structured decision. Any
// transport or decode failure is returned as an error; the policy layer owns
// the fallback.
func (a *GeminiAdvisor) Advise(ctx context.Context, actx AdvisoryContext) (*Advice, error) {
	summaryJSON, err := json.Marshal(actx.Summary)
	if err != nil {
		return nil, fmt.Errorf("marshal emotion summary: %w", err)
	}
	branchesJSON, err := json.Marshal(actx.Branches)
	if err != nil {
		return nil, fmt.Errorf("marshal branches: %w", err)
	}

	played := strings.Join(actx.State.ScenesPlayed, ", ")
	if played == "" {
		played = "just started"
	}

	prompt := fmt.Sprintf(`You are the Director of an adaptive %s film.
You are making a narrative decision based on the viewer's emotional state.

Story so far: %s
Current viewer state: %s
Available branches: %s
Emotion-mapped branch: %s

Confirm or override the branch selection. Return ONLY JSON:
{"next_scene_id": "the scene id you choose", "mood_shift": "tense" or "warm" or "mysterious" or null, "pacing": "slow" or "medium" or "fast", "reasoning": "One sentence explaining your choice"}`,
		actx.State.Genre, played, summaryJSON, branchesJSON, actx.PreSelected)

	out, err := a.cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("advisory call: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("advisory call: empty message")
	}

	var advice Advice
	if err := gemclient.DecodeJSON(out.Content, &advice); err != nil {
		return nil, err
	}
	if advice.NextSceneID == "" {
		return nil, fmt.Errorf("advisory response missing next_scene_id")
	}
	return &advice, nil
}
