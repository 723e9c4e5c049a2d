package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Data-integrity errors. These indicate broken story content or a broken
// caller, never a recoverable runtime condition.
var (
	ErrMalformedStory   = errors.New("story document missing scenes collection")
	ErrSceneNotFound    = errors.New("scene not found")
	ErrNotDecisionPoint = errors.New("scene is not a decision point")
)

// SceneNode is a single scene record in the story graph. Nodes are immutable
// after load; an empty Next marks an ending.
type SceneNode struct {
	ID              string            `json:"id"`
	Chapter         string            `json:"chapter"`
	ImagePrompt     string            `json:"image_prompt"`
	Narration       string            `json:"narration"`
	DurationSeconds int               `json:"duration_seconds"`
	Next            string            `json:"next"`
	IsDecisionPoint bool              `json:"is_decision_point"`
	AdaptationRules map[string]string `json:"adaptation_rules"`
}

// DefaultDurationSeconds is applied to scenes that omit a duration.
const DefaultDurationSeconds = 16

// Graph is the loaded scene collection. Read-only after Load.
type Graph struct {
	scenes map[string]*SceneNode
}

type document struct {
	Scenes map[string]*SceneNode `json:"scenes"`
}

// Load reads and parses the story document at path.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open story file: %w", err)
	}
	defer f.Close()
	g, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("story file %q: %w", path, err)
	}
	return g, nil
}

// Parse decodes a story document and validates its referential integrity:
// every non-empty next pointer and every branch-table destination must name a
// known scene, and decision points must carry a non-empty branch table.
func Parse(r io.Reader) (*Graph, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse story JSON: %w", err)
	}
	if doc.Scenes == nil {
		return nil, ErrMalformedStory
	}

	g := &Graph{scenes: make(map[string]*SceneNode, len(doc.Scenes))}
	for id, node := range doc.Scenes {
		if node == nil {
			return nil, fmt.Errorf("scene %q: empty record", id)
		}
		node.ID = id
		if node.DurationSeconds <= 0 {
			node.DurationSeconds = DefaultDurationSeconds
		}
		g.scenes[id] = node
	}

	for id, node := range g.scenes {
		if node.Next != "" {
			if _, ok := g.scenes[node.Next]; !ok {
				return nil, fmt.Errorf("scene %q: next %q: %w", id, node.Next, ErrSceneNotFound)
			}
		}
		if node.IsDecisionPoint {
			if len(node.AdaptationRules) == 0 {
				return nil, fmt.Errorf("scene %q: decision point without branch table", id)
			}
			for emotion, dest := range node.AdaptationRules {
				if _, ok := g.scenes[dest]; !ok {
					return nil, fmt.Errorf("scene %q: branch %q -> %q: %w", id, emotion, dest, ErrSceneNotFound)
				}
			}
		}
	}
	return g, nil
}

// Len returns the number of scenes in the graph.
func (g *Graph) Len() int {
	return len(g.scenes)
}

// Get looks up a scene by id.
func (g *Graph) Get(id string) (*SceneNode, error) {
	node, ok := g.scenes[id]
	if !ok {
		return nil, fmt.Errorf("scene %q: %w", id, ErrSceneNotFound)
	}
	return node, nil
}

// Branches returns the branch table of a decision point.
func (g *Graph) Branches(node *SceneNode) (map[string]string, error) {
	if !node.IsDecisionPoint || node.AdaptationRules == nil {
		return nil, fmt.Errorf("scene %q: %w", node.ID, ErrNotDecisionPoint)
	}
	return node.AdaptationRules, nil
}
