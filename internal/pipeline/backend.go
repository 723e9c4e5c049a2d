package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	gemclient "github.com/directors-cut/server/internal/gemini"
)

// GeminiBackend generates scene media through the Gemini API: static images,
// narrated speech, and short Veo video clips.
type GeminiBackend struct {
	client       *genai.Client
	imageModel   string
	speechModel  string
	speechVoice  string
	videoModel   string
	videoSeconds int32
	pollInterval time.Duration
	timeout      time.Duration
}

// NewGeminiBackend wires the backend onto the shared client bundle.
func NewGeminiBackend(clients *gemclient.Clients, cfg Config) *GeminiBackend {
	return &GeminiBackend{
		client:       clients.Client,
		imageModel:   clients.Config.ImageModel,
		speechModel:  clients.Config.SpeechModel,
		speechVoice:  clients.Config.SpeechVoice,
		videoModel:   cfg.VideoModel,
		videoSeconds: int32(cfg.VideoDurationSeconds),
		pollInterval: time.Duration(cfg.VideoPollSeconds) * time.Second,
		timeout:      time.Duration(cfg.VideoTimeoutSeconds) * time.Second,
	}
}

// GenerateImage renders a static PNG for the scene.
func (b *GeminiBackend) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.imageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}
	data := inlineData(resp)
	if len(data) == 0 {
		return nil, errors.New("image generation: no inline data in response")
	}
	return data, nil
}

// GenerateSpeech narrates text through Gemini TTS. The model returns raw L16
// PCM, which is wrapped in a WAV container browsers can decode.
func (b *GeminiBackend) GenerateSpeech(ctx context.Context, text string) ([]byte, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.speechModel, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: b.speechVoice,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("speech generation: %w", err)
	}
	pcm := inlineData(resp)
	if len(pcm) == 0 {
		return nil, errors.New("speech generation: no inline data in response")
	}
	return pcmToWAV(pcm, 24000), nil
}

// GenerateVideo submits a Veo job and polls until it completes or the hard
// deadline lapses. A timeout is an error like any other; the generator treats
// it as "no video" and falls back to an image.
func (b *GeminiBackend) GenerateVideo(ctx context.Context, prompt string) ([]byte, error) {
	op, err := b.client.Models.GenerateVideos(ctx, b.videoModel, prompt, nil, &genai.GenerateVideosConfig{
		AspectRatio:     "16:9",
		DurationSeconds: genai.Ptr(b.videoSeconds),
		Resolution:      "720p",
	})
	if err != nil {
		return nil, fmt.Errorf("video generation submit: %w", err)
	}

	deadline := time.Now().Add(b.timeout)
	for !op.Done {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("video generation timed out after %s", b.timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.pollInterval):
		}
		op, err = b.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, fmt.Errorf("video generation poll: %w", err)
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, errors.New("video generation: empty operation response")
	}
	video := op.Response.GeneratedVideos[0].Video
	if video == nil {
		return nil, errors.New("video generation: operation completed without video")
	}
	if len(video.VideoBytes) == 0 {
		if _, err := b.client.Files.Download(ctx, video, nil); err != nil {
			return nil, fmt.Errorf("video download: %w", err)
		}
	}
	return video.VideoBytes, nil
}

// inlineData pulls the first binary part out of a generation response.
func inlineData(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// pcmToWAV frames raw mono 16-bit PCM in a RIFF/WAV header.
func pcmToWAV(pcm []byte, sampleRate uint32) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := uint16(channels * bitsPerSample / 8)

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, sampleRate)
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
