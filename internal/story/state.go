package story

// Session defaults. The entry scene is the graph's designated starting node.
const (
	EntryScene     = "opening"
	DefaultChapter = "The Arrival"
	DefaultGenre   = "mystery"
)

// State is the per-session story position. It is a value type: handlers
// replace it via Advance rather than mutating it, so two in-flight operations
// can never alias the same playthrough record.
type State struct {
	CurrentSceneID string   `json:"current_scene_id"`
	ScenesPlayed   []string `json:"scenes_played"`
	CurrentChapter string   `json:"current_chapter"`
	Genre          string   `json:"genre"`
}

// NewState starts a fresh playthrough at the entry scene. An empty genre
// falls back to the default.
func NewState(genre string) State {
	if genre == "" {
		genre = DefaultGenre
	}
	return State{
		CurrentSceneID: EntryScene,
		ScenesPlayed:   []string{},
		CurrentChapter: DefaultChapter,
		Genre:          genre,
	}
}

// Advance returns a new State positioned at nextSceneID, with the departed
// scene appended to the play history. The receiver is left untouched.
func (s State) Advance(nextSceneID string) State {
	played := make([]string, 0, len(s.ScenesPlayed)+1)
	played = append(played, s.ScenesPlayed...)
	played = append(played, s.CurrentSceneID)
	return State{
		CurrentSceneID: nextSceneID,
		ScenesPlayed:   played,
		CurrentChapter: s.CurrentChapter,
		Genre:          s.Genre,
	}
}
