package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/directors-cut/server/internal/director"
	"github.com/directors-cut/server/internal/emotion"
	gemclient "github.com/directors-cut/server/internal/gemini"
	logx "github.com/directors-cut/server/pkg/logger"
)

// Rewriter performs the external narration rewrite. An error or empty result
// means the seed line is kept.
type Rewriter interface {
	Rewrite(ctx context.Context, req Request) (string, error)
}

// Request carries everything the rewrite gets to see.
type Request struct {
	Seed         string
	Mood         string
	Pacing       director.Pacing
	Summary      emotion.Summary
	ScenesPlayed []string
	Genre        string
}

// Narrator adapts scripted narration to the viewer's state. Pure graceful
// degradation: the caller always receives usable text.
type Narrator struct {
	rewriter Rewriter
}

// New creates a Narrator. A nil rewriter disables adaptation; Adapt then
// returns seeds unchanged.
func New(rewriter Rewriter) *Narrator {
	return &Narrator{rewriter: rewriter}
}

// Adapt rewrites the seed narration for this viewer. An empty seed is
// returned unchanged without calling out; any rewrite failure falls back to
// the seed.
func (n *Narrator) Adapt(ctx context.Context, req Request) string {
	if strings.TrimSpace(req.Seed) == "" {
		return req.Seed
	}
	if n.rewriter == nil {
		return req.Seed
	}

	adapted, err := n.rewriter.Rewrite(ctx, req)
	if err != nil {
		logx.Error().Err(err).Msg("narration rewrite failed, keeping seed")
		return req.Seed
	}
	adapted = strings.Trim(strings.TrimSpace(adapted), `"'`)
	if adapted == "" {
		return req.Seed
	}
	return adapted
}

// chatModel is the slice of the eino chat-model surface the rewriter needs.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// GeminiRewriter rewrites narration with a Gemini chat model.
type GeminiRewriter struct {
	cm chatModel
}

// NewGeminiRewriter wires the rewriter onto the shared client bundle.
func NewGeminiRewriter(clients *gemclient.Clients) *GeminiRewriter {
	return &GeminiRewriter{cm: clients.Narrator}
}

// Rewrite asks the model for an adapted narration line.
func (r *GeminiRewriter) Rewrite(ctx context.Context, req Request) (string, error) {
	mood := req.Mood
	if mood == "" {
		mood = "neutral"
	}

	prompt := fmt.Sprintf(`You are the narrator of an adaptive %s film.
Rewrite this narration line to match a specific viewer's emotional state right now.

Original narration: %q
Viewer: %s emotion, intensity %.1f/10, trend: %s
Director's intent: mood=%s, pacing=%s
Scene number: %d

Adaptation rules - apply the one that matches the viewer:
- BORED or falling intensity: urgency, shorter sentences, active verbs
- TENSE or rising intensity: one small breath of relief, then push forward
- CONFUSED: add a single grounding phrase, slow the rhythm
- ENGAGED or AMUSED: deepen the atmosphere, trust the viewer
- All other states: serve the director's mood and pacing intent

Return ONLY the adapted narration text (1-3 sentences).
No quotes. No labels. No explanation. Just the narration.`,
		req.Genre, req.Seed, req.Summary.DominantEmotion, req.Summary.IntensityAvg,
		req.Summary.Trend, mood, req.Pacing, len(req.ScenesPlayed)+1)

	out, err := r.cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("narration rewrite call: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("narration rewrite call: empty message")
	}
	return out.Content, nil
}
