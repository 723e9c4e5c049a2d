package pipeline

import (
	"context"
	"encoding/base64"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/directors-cut/server/internal/director"
	"github.com/directors-cut/server/internal/story"
	logx "github.com/directors-cut/server/pkg/logger"
)

// Config holds the generation knobs sourced from the environment. Video is
// off by default so dev/test runs never burn video credits.
type Config struct {
	VideoEnabled         bool   `envconfig:"VIDEO_ENABLED" default:"false"`
	VideoModel           string `envconfig:"VIDEO_MODEL" default:"veo-3.0-generate-001"`
	VideoDurationSeconds int    `envconfig:"VIDEO_DURATION_SECONDS" default:"6"`
	VideoPollSeconds     int    `envconfig:"VIDEO_POLL_SECONDS" default:"8"`
	VideoTimeoutSeconds  int    `envconfig:"VIDEO_TIMEOUT_SECONDS" default:"90"`
}

// SceneAssets is the generated multi-modal payload for one scene. Video and
// image are mutually exclusive: video wins, image is the fallback. Immutable
// once constructed and cached.
type SceneAssets struct {
	SceneID         string `json:"scene_id"`
	VideoBase64     string `json:"video_base64,omitempty"`
	ImageBase64     string `json:"image_base64,omitempty"`
	AudioBase64     string `json:"audio_base64,omitempty"`
	NarrationText   string `json:"narration_text"`
	Mood            string `json:"mood"`
	Chapter         string `json:"chapter"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Backend performs the actual generation calls. Implementations return an
// error per failed modality; the generator degrades that one field.
type Backend interface {
	GenerateVideo(ctx context.Context, prompt string) ([]byte, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	GenerateSpeech(ctx context.Context, text string) ([]byte, error)
}

// Generator memoizes generated scene assets under a composite key. Duplicate
// concurrent requests for the same key share one generation via singleflight;
// distinct keys generate independently.
type Generator struct {
	backend      Backend
	graph        *story.Graph
	videoEnabled bool

	mu    sync.RWMutex
	cache map[string]*SceneAssets
	group singleflight.Group
}

// NewGenerator creates a Generator over the given backend and story graph.
func NewGenerator(backend Backend, graph *story.Graph, cfg Config) *Generator {
	return &Generator{
		backend:      backend,
		graph:        graph,
		videoEnabled: cfg.VideoEnabled,
		cache:        make(map[string]*SceneAssets),
	}
}

// cacheKey separates entries by scene, genre, mood and narration override so
// two decisions reaching the same scene with different treatment never
// collide.
func cacheKey(decision director.Decision, sceneID, genre string) string {
	return sceneID + "__" + genre + "__" + decision.MoodShift + "__" + decision.OverrideNarration
}

// Generate returns the assets for a scene, generating and caching them on
// first request. A cache hit performs no external calls and returns the
// stored value itself. Generation never fails: each modality degrades to an
// absent field on error, so a fully empty asset set is still a valid result.
func (g *Generator) Generate(ctx context.Context, decision director.Decision, scene *story.SceneNode, genre string) *SceneAssets {
	key := cacheKey(decision, scene.ID, genre)

	g.mu.RLock()
	cached := g.cache[key]
	g.mu.RUnlock()
	if cached != nil {
		return cached
	}

	v, _, _ := g.group.Do(key, func() (any, error) {
		// A concurrent caller may have populated the entry while this
		// call waited on the flight group.
		g.mu.RLock()
		existing := g.cache[key]
		g.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		assets := g.generate(ctx, decision, scene, genre)

		g.mu.Lock()
		g.cache[key] = assets
		g.mu.Unlock()
		return assets, nil
	})
	return v.(*SceneAssets)
}

func (g *Generator) generate(ctx context.Context, decision director.Decision, scene *story.SceneNode, genre string) *SceneAssets {
	prompt := visualPrompt(scene, genre, decision)
	narration := decision.OverrideNarration
	if narration == "" {
		narration = scene.Narration
	}

	var videoB64, audioB64 string
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if !g.videoEnabled {
			return
		}
		data, err := g.backend.GenerateVideo(ctx, prompt)
		if err != nil {
			logx.Error().Err(err).Str("scene", scene.ID).Msg("video generation failed, will fall back to image")
			return
		}
		if len(data) > 0 {
			videoB64 = base64.StdEncoding.EncodeToString(data)
		}
	}()

	go func() {
		defer wg.Done()
		data, err := g.backend.GenerateSpeech(ctx, narration)
		if err != nil {
			logx.Error().Err(err).Str("scene", scene.ID).Msg("speech generation failed")
			return
		}
		if len(data) > 0 {
			audioB64 = base64.StdEncoding.EncodeToString(data)
		}
	}()

	wg.Wait()

	// No video: fall back to a static image so the scene is never blank.
	var imageB64 string
	if videoB64 == "" {
		data, err := g.backend.GenerateImage(ctx, prompt)
		if err != nil {
			logx.Error().Err(err).Str("scene", scene.ID).Msg("image generation failed")
		} else if len(data) > 0 {
			imageB64 = base64.StdEncoding.EncodeToString(data)
		}
	}

	mood := decision.MoodShift
	if mood == "" {
		mood = "neutral"
	}

	return &SceneAssets{
		SceneID:         scene.ID,
		VideoBase64:     videoB64,
		ImageBase64:     imageB64,
		AudioBase64:     audioB64,
		NarrationText:   narration,
		Mood:            mood,
		Chapter:         scene.Chapter,
		DurationSeconds: scene.DurationSeconds,
	}
}

// Prefetch speculatively generates assets for the scene following current.
// At decision points the destination is unknown, so it no-ops; endings no-op
// too. Best-effort by construction: Generate cannot fail.
func (g *Generator) Prefetch(ctx context.Context, current *story.SceneNode, genre string) {
	if current.Next == "" {
		return
	}
	next, err := g.graph.Get(current.Next)
	if err != nil {
		logx.Warn().Err(err).Str("scene", current.ID).Msg("prefetch skipped, successor unknown")
		return
	}
	if next.IsDecisionPoint {
		return
	}
	g.Generate(ctx, director.Linear(next.ID), next, genre)
	logx.Debug().Str("scene", next.ID).Msg("prefetched scene assets")
}

// Clear drops every cached entry. Called on story reset so replays regenerate
// fresh assets.
func (g *Generator) Clear() {
	g.mu.Lock()
	g.cache = make(map[string]*SceneAssets)
	g.mu.Unlock()
}

// CacheLen returns the number of cached asset sets.
func (g *Generator) CacheLen() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}
