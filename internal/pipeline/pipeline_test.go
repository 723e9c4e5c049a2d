package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/directors-cut/server/internal/director"
	"github.com/directors-cut/server/internal/story"
)

const testStory = `{
  "scenes": {
    "opening": {"next": "foyer", "narration": "The gates opened.", "image_prompt": "manor gate, mystery genre", "chapter": "The Arrival"},
    "foyer": {"next": "first_choice", "narration": "Dust hung in the lamplight."},
    "first_choice": {"is_decision_point": true, "next": "cellar", "adaptation_rules": {"default": "cellar"}},
    "cellar": {"narration": "Cold air rose from below."}
  }
}`

type fakeBackend struct {
	videoCalls  atomic.Int32
	imageCalls  atomic.Int32
	speechCalls atomic.Int32

	videoErr  error
	imageErr  error
	speechErr error

	delay time.Duration
}

func (f *fakeBackend) GenerateVideo(ctx context.Context, prompt string) ([]byte, error) {
	f.videoCalls.Add(1)
	time.Sleep(f.delay)
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return []byte("mp4"), nil
}

func (f *fakeBackend) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	f.imageCalls.Add(1)
	time.Sleep(f.delay)
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return []byte("png"), nil
}

func (f *fakeBackend) GenerateSpeech(ctx context.Context, text string) ([]byte, error) {
	f.speechCalls.Add(1)
	time.Sleep(f.delay)
	if f.speechErr != nil {
		return nil, f.speechErr
	}
	return []byte("wav"), nil
}

func testGraph(t *testing.T) *story.Graph {
	t.Helper()
	g, err := story.Parse(strings.NewReader(testStory))
	if err != nil {
		t.Fatalf("parse test story: %v", err)
	}
	return g
}

func scene(t *testing.T, g *story.Graph, id string) *story.SceneNode {
	t.Helper()
	node, err := g.Get(id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return node
}

func TestGenerateCacheIdentity(t *testing.T) {
	backend := &fakeBackend{}
	g := testGraph(t)
	gen := NewGenerator(backend, g, Config{})

	dec := director.Linear("opening")
	first := gen.Generate(context.Background(), dec, scene(t, g, "opening"), "mystery")
	second := gen.Generate(context.Background(), dec, scene(t, g, "opening"), "mystery")

	if first != second {
		t.Error("expected the identical cached object on the second call")
	}
	if n := backend.imageCalls.Load(); n != 1 {
		t.Errorf("expected exactly one image call, got %d", n)
	}
	if n := backend.speechCalls.Load(); n != 1 {
		t.Errorf("expected exactly one speech call, got %d", n)
	}
}

func TestGenerateKeySeparation(t *testing.T) {
	backend := &fakeBackend{}
	g := testGraph(t)
	gen := NewGenerator(backend, g, Config{})

	gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")
	gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "horror")
	moody := director.Linear("opening")
	moody.MoodShift = "tense"
	gen.Generate(context.Background(), moody, scene(t, g, "opening"), "mystery")

	if n := backend.imageCalls.Load(); n != 3 {
		t.Errorf("expected three generations for three distinct keys, got %d", n)
	}
	if gen.CacheLen() != 3 {
		t.Errorf("expected three cache entries, got %d", gen.CacheLen())
	}
}

func TestGenerateVideoDisabled(t *testing.T) {
	backend := &fakeBackend{}
	g := testGraph(t)
	gen := NewGenerator(backend, g, Config{VideoEnabled: false})

	assets := gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")

	if backend.videoCalls.Load() != 0 {
		t.Error("expected no video call when video is disabled")
	}
	if assets.VideoBase64 != "" {
		t.Error("expected absent video field")
	}
	if assets.ImageBase64 == "" {
		t.Error("expected image populated from the fallback path")
	}
	if assets.AudioBase64 == "" {
		t.Error("expected audio populated")
	}
}

func TestGenerateVideoSuccessSkipsImage(t *testing.T) {
	backend := &fakeBackend{}
	g := testGraph(t)
	gen := NewGenerator(backend, g, Config{VideoEnabled: true})

	assets := gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")

	if assets.VideoBase64 == "" {
		t.Error("expected video populated")
	}
	if assets.ImageBase64 != "" {
		t.Error("video and image must never both be present")
	}
	if backend.imageCalls.Load() != 0 {
		t.Error("expected no image call when video succeeded")
	}
}

func TestGenerateVideoFailureFallsBackToImage(t *testing.T) {
	backend := &fakeBackend{videoErr: errors.New("veo timed out")}
	g := testGraph(t)
	gen := NewGenerator(backend, g, Config{VideoEnabled: true})

	assets := gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")

	if assets.VideoBase64 != "" {
		t.Error("expected absent video after failure")
	}
	if assets.ImageBase64 == "" {
		t.Error("expected image fallback after video failure")
	}
}

func TestGenerateIndependentDegradation(t *testing.T) {
	t.Run("image fails, audio survives", func(t *testing.T) {
		backend := &fakeBackend{imageErr: errors.New("image backend down")}
		g := testGraph(t)
		gen := NewGenerator(backend, g, Config{})

		assets := gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")
		if assets.ImageBase64 != "" {
			t.Error("expected absent image")
		}
		if assets.AudioBase64 == "" {
			t.Error("expected audio despite image failure")
		}
	})

	t.Run("audio fails, image survives", func(t *testing.T) {
		backend := &fakeBackend{speechErr: errors.New("tts down")}
		g := testGraph(t)
		gen := NewGenerator(backend, g, Config{})

		assets := gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")
		if assets.AudioBase64 != "" {
			t.Error("expected absent audio")
		}
		if assets.ImageBase64 == "" {
			t.Error("expected image despite audio failure")
		}
	})

	t.Run("everything fails is still a valid result", func(t *testing.T) {
		backend := &fakeBackend{
			videoErr:  errors.New("down"),
			imageErr:  errors.New("down"),
			speechErr: errors.New("down"),
		}
		g := testGraph(t)
		gen := NewGenerator(backend, g, Config{VideoEnabled: true})

		assets := gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")
		if assets == nil {
			t.Fatal("expected degenerate assets, got nil")
		}
		if assets.VideoBase64 != "" || assets.ImageBase64 != "" || assets.AudioBase64 != "" {
			t.Errorf("expected all fields absent, got %+v", assets)
		}
		if assets.NarrationText != "The gates opened." {
			t.Errorf("expected narration carried through, got %q", assets.NarrationText)
		}
	})
}

func TestGenerateConcurrentSameKey(t *testing.T) {
	backend := &fakeBackend{delay: 20 * time.Millisecond}
	g := testGraph(t)
	gen := NewGenerator(backend, g, Config{})

	const workers = 8
	results := make([]*SceneAssets, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")
		}(i)
	}
	wg.Wait()

	if n := backend.imageCalls.Load(); n != 1 {
		t.Errorf("expected one effective generation under concurrency, got %d image calls", n)
	}
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("expected all concurrent callers to share one result")
		}
	}
}

func TestGenerateNarrationOverride(t *testing.T) {
	backend := &fakeBackend{}
	g := testGraph(t)
	gen := NewGenerator(backend, g, Config{})

	dec := director.Linear("opening")
	dec.OverrideNarration = "The gates moved on their own."
	assets := gen.Generate(context.Background(), dec, scene(t, g, "opening"), "mystery")

	if assets.NarrationText != dec.OverrideNarration {
		t.Errorf("expected override narration, got %q", assets.NarrationText)
	}
}

func TestPrefetch(t *testing.T) {
	t.Run("populates cache for linear successor", func(t *testing.T) {
		backend := &fakeBackend{}
		g := testGraph(t)
		gen := NewGenerator(backend, g, Config{})

		gen.Prefetch(context.Background(), scene(t, g, "opening"), "mystery")
		if gen.CacheLen() != 1 {
			t.Fatalf("expected one cached entry, got %d", gen.CacheLen())
		}

		// The real transition must hit the prefetched entry.
		before := backend.imageCalls.Load()
		gen.Generate(context.Background(), director.Linear("foyer"), scene(t, g, "foyer"), "mystery")
		if backend.imageCalls.Load() != before {
			t.Error("expected the transition to reuse the prefetched assets")
		}
	})

	t.Run("no-op when successor is a decision point", func(t *testing.T) {
		backend := &fakeBackend{}
		g := testGraph(t)
		gen := NewGenerator(backend, g, Config{})

		gen.Prefetch(context.Background(), scene(t, g, "foyer"), "mystery")
		if gen.CacheLen() != 0 {
			t.Errorf("expected empty cache, got %d entries", gen.CacheLen())
		}
	})

	t.Run("no-op at an ending", func(t *testing.T) {
		backend := &fakeBackend{}
		g := testGraph(t)
		gen := NewGenerator(backend, g, Config{})

		gen.Prefetch(context.Background(), scene(t, g, "cellar"), "mystery")
		if gen.CacheLen() != 0 {
			t.Errorf("expected empty cache, got %d entries", gen.CacheLen())
		}
	})
}

func TestClearForcesRegeneration(t *testing.T) {
	backend := &fakeBackend{}
	g := testGraph(t)
	gen := NewGenerator(backend, g, Config{})

	gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")
	gen.Clear()
	if gen.CacheLen() != 0 {
		t.Fatalf("expected empty cache after clear, got %d", gen.CacheLen())
	}
	gen.Generate(context.Background(), director.Linear("opening"), scene(t, g, "opening"), "mystery")

	if n := backend.imageCalls.Load(); n != 2 {
		t.Errorf("expected regeneration after clear, got %d image calls", n)
	}
}

func TestVisualPrompt(t *testing.T) {
	g := testGraph(t)
	node := scene(t, g, "opening")

	dec := director.Linear("opening")
	dec.MoodShift = "tense"
	prompt := visualPrompt(node, "horror", dec)

	if !strings.Contains(prompt, "horror genre") {
		t.Errorf("expected genre substitution, got %q", prompt)
	}
	if strings.Contains(prompt, "mystery genre") {
		t.Errorf("expected mystery replaced, got %q", prompt)
	}
	if !strings.Contains(prompt, "Additional visual style:") {
		t.Errorf("expected genre style appended, got %q", prompt)
	}
	if !strings.Contains(prompt, "Mood: tense") {
		t.Errorf("expected mood suffix, got %q", prompt)
	}

	plain := visualPrompt(node, "mystery", director.Linear("opening"))
	if strings.Contains(plain, "Additional visual style:") {
		t.Errorf("mystery must not append a style block, got %q", plain)
	}
}

func TestPCMToWAV(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := pcmToWAV(pcm, 24000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("expected 44-byte header plus payload, got %d bytes", len(wav))
	}
	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("malformed RIFF header: %q %q", wav[:4], wav[8:12])
	}
	if string(wav[36:40]) != "data" {
		t.Errorf("missing data chunk marker: %q", wav[36:40])
	}
	if string(wav[44:]) != string(pcm) {
		t.Error("payload not carried through")
	}
}
