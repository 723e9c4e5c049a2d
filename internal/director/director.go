package director

import (
	"context"

	"github.com/directors-cut/server/internal/emotion"
	"github.com/directors-cut/server/internal/story"
	logx "github.com/directors-cut/server/pkg/logger"
)

// Pacing is the director's tempo instruction for the next scene.
type Pacing string

const (
	PacingSlow   Pacing = "slow"
	PacingMedium Pacing = "medium"
	PacingFast   Pacing = "fast"
)

// Valid reports whether p is a known pacing value.
func (p Pacing) Valid() bool {
	switch p {
	case PacingSlow, PacingMedium, PacingFast:
		return true
	}
	return false
}

// Decision is the resolved next step of the narrative. It is produced here and
// consumed immediately by asset generation.
type Decision struct {
	NextSceneID       string `json:"next_scene_id"`
	OverrideNarration string `json:"override_narration,omitempty"`
	MoodShift         string `json:"mood_shift,omitempty"`
	Pacing            Pacing `json:"pacing"`
	Reasoning         string `json:"reasoning,omitempty"`
}

// Linear builds the deterministic decision used for linear advances, stays on
// terminal scenes, and prefetch.
func Linear(sceneID string) Decision {
	return Decision{NextSceneID: sceneID, Pacing: PacingMedium}
}

// AdvisoryContext is everything the external advisory call gets to see.
type AdvisoryContext struct {
	Summary     emotion.Summary
	State       story.State
	Branches    map[string]string
	PreSelected string
}

// Advice is the advisory model's validated response.
type Advice struct {
	NextSceneID string `json:"next_scene_id"`
	MoodShift   string `json:"mood_shift"`
	Pacing      Pacing `json:"pacing"`
	Reasoning   string `json:"reasoning"`
}

// Advisor is the external branch-advisory collaborator. An error return means
// the advisory is unavailable; the policy falls back deterministically.
type Advisor interface {
	Advise(ctx context.Context, actx AdvisoryContext) (*Advice, error)
}

// Director resolves scene transitions. A nil advisor disables the advisory
// step entirely; branch points then use the emotion-mapped fallback alone.
type Director struct {
	advisor Advisor
}

// New creates a Director with the given advisory collaborator (may be nil).
func New(advisor Advisor) *Director {
	return &Director{advisor: advisor}
}

// Decide resolves the next scene for the session.
//
// The only errors it returns are graph-lookup failures, which indicate broken
// story content. Advisory failures never surface: the emotion-mapped branch is
// substituted and the degradation is logged.
func (d *Director) Decide(ctx context.Context, summary emotion.Summary, state story.State, graph *story.Graph) (Decision, error) {
	current, err := graph.Get(state.CurrentSceneID)
	if err != nil {
		return Decision{}, err
	}

	// Ending reached: stay put, caller interprets this as terminal.
	if current.Next == "" {
		return Linear(current.ID), nil
	}

	next, err := graph.Get(current.Next)
	if err != nil {
		return Decision{}, err
	}

	if !next.IsDecisionPoint {
		return Linear(next.ID), nil
	}

	rules, err := graph.Branches(next)
	if err != nil {
		return Decision{}, err
	}
	preSelected := mappedBranch(rules, summary.DominantEmotion)

	if d.advisor == nil {
		return Linear(preSelected), nil
	}

	advice, err := d.advisor.Advise(ctx, AdvisoryContext{
		Summary:     summary,
		State:       state,
		Branches:    rules,
		PreSelected: preSelected,
	})
	if err != nil {
		logx.Error().Err(err).Str("fallback", preSelected).Msg("director advisory failed, using mapped branch")
		return Linear(preSelected), nil
	}

	nextID := advice.NextSceneID
	if _, lookupErr := graph.Get(nextID); lookupErr != nil {
		logx.Warn().Str("advised", nextID).Str("fallback", preSelected).Msg("advisory chose unknown scene, using mapped branch")
		nextID = preSelected
	}

	pacing := advice.Pacing
	if !pacing.Valid() {
		pacing = PacingMedium
	}

	return Decision{
		NextSceneID: nextID,
		MoodShift:   advice.MoodShift,
		Pacing:      pacing,
		Reasoning:   advice.Reasoning,
	}, nil
}

// mappedBranch resolves the deterministic fallback: dominant emotion, then the
// table's default entry, then any entry at all so a malformed table still
// yields a destination.
func mappedBranch(rules map[string]string, dominant emotion.Type) string {
	if dest, ok := rules[string(dominant)]; ok {
		return dest
	}
	if dest, ok := rules["default"]; ok {
		return dest
	}
	for _, dest := range rules {
		return dest
	}
	return ""
}
