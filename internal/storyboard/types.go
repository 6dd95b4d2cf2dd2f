package storyboard

// Document is one uploaded source text. Immutable once read.
type Document struct {
	Name        string
	Text        string
	ContentType string
}

// GenerationSpec fixes the target shape of one content package.
// Derived once per document, never mutated.
type GenerationSpec struct {
	TargetSceneCount int
	TargetQuizCount  int
	WordCount        int
}

// Scene is one playback unit of the storyboard. Narration serializes under
// the legacy "text" key the player consumes.
type Scene struct {
	Index        int      `json:"index"`
	Title        string   `json:"title"`
	Narration    string   `json:"text"`
	Keywords     []string `json:"keywords"`
	Badge        string   `json:"badge,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	ImageAlt     string   `json:"imageAlt,omitempty"`
	VisualPrompt string   `json:"visualPrompt"`
}

// QuizQuestion always carries exactly four options and an in-range
// correct index, whatever the generator returned.
type QuizQuestion struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

// GenerationResult is the raw LLM output before materialization.
// Consumed once into []Scene / []QuizQuestion.
type GenerationResult struct {
	Summary string        `json:"summary"`
	Scenes  []RawScene    `json:"scenes"`
	Quiz    []RawQuizItem `json:"quiz"`
}

type RawScene struct {
	Title        string   `json:"title"`
	Narration    string   `json:"narration"`
	Keywords     []string `json:"keywords"`
	VisualPrompt string   `json:"visualPrompt"`
	Badge        string   `json:"badge"`
}

type RawQuizItem struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// Manifest is the final persisted artifact for one document.
type Manifest struct {
	SourceDocument string     `json:"sourceDocument"`
	Summary        string     `json:"summary"`
	SceneCount     int        `json:"sceneCount"`
	CreatedUTC     string     `json:"createdUtc"`
	Scenes         []Scene    `json:"scenes"`
	VideoAsset     VideoAsset `json:"videoAsset"`
}

type QuizDocument struct {
	SourceDocument string         `json:"sourceDocument"`
	CreatedUTC     string         `json:"createdUtc"`
	Questions      []QuizQuestion `json:"questions"`
}
