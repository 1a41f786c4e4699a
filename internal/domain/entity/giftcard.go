package entity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Relationship string

const (
	RelationshipFamily    Relationship = "family"
	RelationshipFriend    Relationship = "friend"
	RelationshipColleague Relationship = "colleague"
	RelationshipOther     Relationship = "other"
)

type Occasion string

const (
	OccasionBirthday        Occasion = "birthday"
	OccasionHoliday         Occasion = "holiday"
	OccasionThankYou        Occasion = "thank_you"
	OccasionCongratulations Occasion = "congratulations"
	OccasionOther           Occasion = "other"
)

type Emotion string

const (
	EmotionJoy        Emotion = "joy"
	EmotionGratitude  Emotion = "gratitude"
	EmotionLove       Emotion = "love"
	EmotionExcitement Emotion = "excitement"
)

// The closed value sets the text model is allowed to answer with.
var (
	Relationships = []Relationship{RelationshipFamily, RelationshipFriend, RelationshipColleague, RelationshipOther}
	Occasions     = []Occasion{OccasionBirthday, OccasionHoliday, OccasionThankYou, OccasionCongratulations, OccasionOther}
	Emotions      = []Emotion{EmotionJoy, EmotionGratitude, EmotionLove, EmotionExcitement}
)

func (r Relationship) Valid() bool { return contains(Relationships, r) }
func (o Occasion) Valid() bool     { return contains(Occasions, o) }
func (e Emotion) Valid() bool      { return contains(Emotions, e) }

// Label turns "thank_you" into "Thank You". An empty occasion is labelled "Default".
func (o Occasion) Label() string {
	raw := strings.TrimSpace(string(o))
	if raw == "" {
		return "Default"
	}
	words := strings.Fields(strings.ReplaceAll(raw, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// ParseRelationship normalizes a free-form value into the closed set.
// Anything unrecognised becomes "" which callers treat as "could not infer".
func ParseRelationship(s string) Relationship { return parse(Relationships, s) }
func ParseOccasion(s string) Occasion         { return parse(Occasions, s) }
func ParseEmotion(s string) Emotion           { return parse(Emotions, s) }

func contains[T ~string](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func parse[T ~string](set []T, s string) T {
	v := T(strings.ToLower(strings.TrimSpace(s)))
	if contains(set, v) {
		return v
	}
	return ""
}

// GenerationContext is the per-request input to message and image generation.
type GenerationContext struct {
	RecipientName string       `json:"recipient_name"`
	Relationship  Relationship `json:"relationship"`
	Occasion      Occasion     `json:"occasion"`
	Emotion       Emotion      `json:"emotion"`
	Memories      string       `json:"memories"`
}

// AnalysisResult holds the suggestions inferred from the sender's first thoughts.
// Empty categorical fields mean the model could not infer them.
type AnalysisResult struct {
	Relationship Relationship `json:"relationship"`
	Occasion     Occasion     `json:"occasion"`
	Emotion      Emotion      `json:"emotion"`
	Memories     string       `json:"memories"`
	Explanation  string       `json:"explanation"`
}

type MessageResult struct {
	Message     string `json:"message"`
	ImagePrompt string `json:"image_prompt"`
}

type Provenance string

const (
	ProvenanceGenerated   Provenance = "generated"
	ProvenancePlaceholder Provenance = "placeholder"
)

type ImageResult struct {
	Data       []byte
	MimeType   string
	Provenance Provenance
	Provider   string
}

// Deliverable is what the web layer packages into a preview, PDF or email.
type Deliverable struct {
	Message         string
	ImagePrompt     string
	Image           ImageResult
	MessageFallback bool
}
