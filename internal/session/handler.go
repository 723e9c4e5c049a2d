package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/directors-cut/server/internal/director"
	"github.com/directors-cut/server/internal/emotion"
	"github.com/directors-cut/server/internal/narrator"
	"github.com/directors-cut/server/internal/pipeline"
	"github.com/directors-cut/server/internal/story"
	logx "github.com/directors-cut/server/pkg/logger"
)

// secondsPerFrame is the nominal sampling cadence: a scene needs
// max(1, duration/secondsPerFrame) perception events before it may advance.
const secondsPerFrame = 15

// Sender is the outbound half of the session transport.
type Sender interface {
	Send(v any) error
	Close() error
}

// Deps are the collaborators a session handler drives. Store may be nil.
type Deps struct {
	Graph      *story.Graph
	Classifier emotion.Classifier
	Director   *director.Director
	Narrator   *narrator.Narrator
	Generator  *pipeline.Generator
	Store      StateStore
}

// Handler owns one viewer session: story state, emotion accumulator, and the
// advance/decide/generate cycle. Messages from one connection are handled
// strictly one at a time by the transport's read loop; the only concurrent
// touch points are the registry sweep (last-activity clock) and the shared
// asset cache, which synchronizes itself.
type Handler struct {
	Deps
	send      Sender
	sessionID string

	mu   sync.Mutex
	last time.Time

	state  story.State
	acc    *emotion.Accumulator
	frames int
}

func NewHandler(deps Deps, send Sender) *Handler {
	return &Handler{
		Deps:  deps,
		send:  send,
		last:  time.Now(),
		state: story.NewState(story.DefaultGenre),
		acc:   emotion.NewAccumulator(),
	}
}

func (h *Handler) SessionID() string { return h.sessionID }

func (h *Handler) touch() {
	h.mu.Lock()
	h.last = time.Now()
	h.mu.Unlock()
}

func (h *Handler) lastActive() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *Handler) close() {
	if err := h.send.Close(); err != nil {
		logx.Warn().Err(err).Str("sessionID", h.sessionID).Msg("failed to close session transport")
	}
}

// SendError emits a single error notice. Best-effort: the connection is
// about to close anyway when this is called.
func (h *Handler) SendError(message string) {
	if err := h.send.Send(ErrorEvent{Type: TypeError, Message: message}); err != nil {
		logx.Warn().Err(err).Str("sessionID", h.sessionID).Msg("failed to send error notice")
	}
}

// HandleRaw processes one inbound message to completion. Malformed JSON is
// logged and skipped; a returned error means the session is broken (a
// data-integrity violation or a dead transport) and the caller should emit
// one error notice and let the connection close.
func (h *Handler) HandleRaw(ctx context.Context, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Interface("panic", r).Str("sessionID", h.sessionID).Msg("session handler panicked")
			err = fmt.Errorf("session handler panic: %v", r)
		}
	}()
	h.touch()

	var msg Envelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		logx.Warn().Str("sessionID", h.sessionID).Msg("ignoring malformed session message")
		return nil
	}

	switch msg.Type {
	case TypeStart:
		genre := msg.Genre
		if genre == "" {
			genre = story.DefaultGenre
		}
		return h.restart(ctx, genre)

	case TypeReset:
		// keep the session's genre
		return h.restart(ctx, h.state.Genre)

	case TypeFrame:
		var frame string
		if err := json.Unmarshal(msg.Data, &frame); err != nil {
			logx.Warn().Str("sessionID", h.sessionID).Msg("ignoring frame message without image payload")
			return nil
		}
		return h.perceive(ctx, h.Classifier.Classify(ctx, frame))

	case TypeEmotion:
		var reading emotion.Reading
		if err := json.Unmarshal(msg.Data, &reading); err != nil {
			logx.Warn().Str("sessionID", h.sessionID).Msg("ignoring malformed emotion payload")
			return nil
		}
		if err := reading.Validate(); err != nil {
			logx.Warn().Err(err).Str("sessionID", h.sessionID).Msg("ignoring invalid emotion reading")
			return nil
		}
		return h.perceive(ctx, reading)

	default:
		logx.Warn().Str("type", msg.Type).Str("sessionID", h.sessionID).Msg("ignoring unknown session message type")
		return nil
	}
}

// restart reinitializes the session and replays the opening scene. The asset
// cache is cleared globally so a replay regenerates fresh assets.
func (h *Handler) restart(ctx context.Context, genre string) error {
	h.state = story.NewState(genre)
	h.acc = emotion.NewAccumulator()
	h.frames = 0
	h.Generator.Clear()
	return h.sendOpening(ctx)
}

func (h *Handler) sendOpening(ctx context.Context) error {
	opening, err := h.Graph.Get(h.state.CurrentSceneID)
	if err != nil {
		return err
	}
	assets := h.Generator.Generate(ctx, director.Linear(opening.ID), opening, h.state.Genre)
	if err := h.send.Send(SceneEvent{Type: TypeScene, Assets: assets}); err != nil {
		return err
	}
	h.persist(ctx)
	go h.Generator.Prefetch(context.Background(), opening, h.state.Genre)
	return nil
}

// perceive folds one emotion reading into the session: echo it back for the
// UI, accumulate it, and run the advance check.
func (h *Handler) perceive(ctx context.Context, reading emotion.Reading) error {
	if err := h.send.Send(EmotionEvent{Type: TypeEmotion, Data: reading}); err != nil {
		return err
	}
	h.acc.Add(reading)
	h.frames++
	return h.maybeAdvance(ctx)
}

func framesNeeded(scene *story.SceneNode) int {
	n := scene.DurationSeconds / secondsPerFrame
	if n < 1 {
		n = 1
	}
	return n
}

// maybeAdvance resolves a scene transition once enough perception events
// arrived and the current scene has a successor. Decision points get a
// transient "deciding" notice before the director runs; linear advances skip
// the director entirely.
func (h *Handler) maybeAdvance(ctx context.Context) error {
	current, err := h.Graph.Get(h.state.CurrentSceneID)
	if err != nil {
		return err
	}
	if h.frames < framesNeeded(current) || current.Next == "" {
		return nil
	}

	next, err := h.Graph.Get(current.Next)
	if err != nil {
		return err
	}

	var dec director.Decision
	if next.IsDecisionPoint {
		if err := h.send.Send(StatusEvent{Type: TypeDeciding}); err != nil {
			return err
		}
		dec, err = h.Director.Decide(ctx, h.acc.Summarize(), h.state, h.Graph)
		if err != nil {
			return err
		}
	} else {
		dec = director.Linear(next.ID)
	}

	h.state = h.state.Advance(dec.NextSceneID)
	scene, err := h.Graph.Get(dec.NextSceneID)
	if err != nil {
		return err
	}

	// Personalize narration before generation, but only once the viewer has
	// produced readings to personalize against.
	if h.acc.Len() > 0 && scene.Narration != "" {
		dec.OverrideNarration = h.Narrator.Adapt(ctx, narrator.Request{
			Seed:         scene.Narration,
			Mood:         dec.MoodShift,
			Pacing:       dec.Pacing,
			Summary:      h.acc.Summarize(),
			ScenesPlayed: h.state.ScenesPlayed,
			Genre:        h.state.Genre,
		})
	}

	assets := h.Generator.Generate(ctx, dec, scene, h.state.Genre)
	h.frames = 0
	h.persist(ctx)
	go h.Generator.Prefetch(context.Background(), scene, h.state.Genre)

	if err := h.send.Send(SceneEvent{Type: TypeScene, Assets: assets}); err != nil {
		return err
	}
	if scene.Next == "" && !scene.IsDecisionPoint {
		return h.send.Send(CompleteEvent{
			Type:         TypeComplete,
			Ending:       scene.ID,
			ScenesPlayed: h.state.ScenesPlayed,
		})
	}
	return nil
}

// persist snapshots the story state. Best-effort: the store logs its own
// failures and the session keeps running on memory alone.
func (h *Handler) persist(ctx context.Context) {
	if h.Store == nil {
		return
	}
	if err := h.Store.Save(ctx, h.sessionID, h.state); err != nil {
		logx.Warn().Err(err).Str("sessionID", h.sessionID).Msg("session state snapshot not saved")
	}
}
