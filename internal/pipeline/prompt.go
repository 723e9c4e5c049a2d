package pipeline

import (
	"strings"

	"github.com/directors-cut/server/internal/director"
	"github.com/directors-cut/server/internal/story"
)

// genreVisualStyle augments scene prompts per genre. Story prompts are
// authored for mystery, so mystery adds nothing.
var genreVisualStyle = map[string]string{
	"mystery":  "",
	"thriller": "high contrast, desaturated palette, claustrophobic framing, cold institutional lighting, extreme tension",
	"horror":   "deep shadows, off-kilter dutch angle, pale sickly moonlight, unsettling negative space, cold blue-grey horror palette",
	"sci-fi":   "retrofuturism, cool neon-and-silver accents, holographic surface details, technological decay woven into Victorian architecture, blue-white lighting",
}

// visualPrompt composes the final visual prompt from the scene's authored
// prompt, the session genre, and the director's mood shift.
func visualPrompt(scene *story.SceneNode, genre string, decision director.Decision) string {
	prompt := strings.ReplaceAll(scene.ImagePrompt, "mystery genre", genre+" genre")
	prompt = strings.ReplaceAll(prompt, "meets mystery:", "meets "+genre+":")
	if style := genreVisualStyle[genre]; style != "" {
		prompt += "\nAdditional visual style: " + style
	}
	if decision.MoodShift != "" {
		prompt += "\nMood: " + decision.MoodShift
	}
	return prompt
}
