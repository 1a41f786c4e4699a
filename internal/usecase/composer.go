package usecase

import (
	"fmt"
	"strings"

	"giftcard-core/internal/domain/entity"
)

const DefaultMinPromptWords = 20

// MessageComposer builds prompts for the text model and enforces the
// post-conditions on what comes back. It holds no request state.
type MessageComposer struct {
	minPromptWords int
}

func NewMessageComposer(minPromptWords int) *MessageComposer {
	if minPromptWords < 1 {
		minPromptWords = DefaultMinPromptWords
	}
	return &MessageComposer{minPromptWords: minPromptWords}
}

func (c *MessageComposer) BuildAnalysisPrompt(recipientName, freeText string) string {
	return fmt.Sprintf(`Analyze this gift card message information and suggest appropriate options:

Recipient Name: %s
Initial Message: %s

Based on the above, determine:
1. The likely relationship between sender and recipient
2. The probable occasion
3. The main emotion being conveyed
4. Any specific memories or references mentioned

Respond with a single JSON object like this example:
{
    "relationship": "colleague",
    "occasion": "congratulations",
    "emotion": "gratitude",
    "memories": "working together",
    "explanation": "This appears to be a retirement gift for a colleague..."
}

Only use the following values:
- relationship: [%s]
- occasion: [%s]
- emotion: [%s]
`, recipientName, freeText, quoted(entity.Relationships), quoted(entity.Occasions), quoted(entity.Emotions))
}

func (c *MessageComposer) BuildGenerationPrompt(gc entity.GenerationContext) string {
	return fmt.Sprintf(`Create a heartfelt gift card message and image description based on:

Recipient: %s
Relationship: %s
Occasion: %s
Emotion: %s
Memories: %s

Return ONLY a JSON object:
{
    "message": "A warm, personal message without placeholders",
    "image_prompt": "A detailed visual description (%d+ words)"
}

The message should be personal and incorporate the specific memories if provided.
The image prompt should describe a scene that matches the emotion and occasion.
`, gc.RecipientName, gc.Relationship, gc.Occasion, gc.Emotion, gc.Memories, c.minPromptWords)
}

// PostValidate rejects a reply without a message or image prompt and replaces
// an image prompt shorter than the configured word count.
func (c *MessageComposer) PostValidate(res entity.MessageResult, gc entity.GenerationContext) (entity.MessageResult, error) {
	res.Message = strings.TrimSpace(res.Message)
	res.ImagePrompt = strings.TrimSpace(res.ImagePrompt)
	if res.Message == "" || res.ImagePrompt == "" {
		return entity.MessageResult{}, entity.ErrInvalidMessage
	}
	if len(strings.Fields(res.ImagePrompt)) < c.minPromptWords {
		res.ImagePrompt = c.ImagePromptFor(gc)
	}
	return res, nil
}

// FallbackMessage is the deterministic message used when generation fails.
func (c *MessageComposer) FallbackMessage(gc entity.GenerationContext) entity.MessageResult {
	return entity.MessageResult{
		Message: fmt.Sprintf("Dear %s,\n\nI wanted to take this moment to share my %s with you on your %s. %s\n\nBest wishes",
			gc.RecipientName, gc.Emotion, gc.Occasion, gc.Memories),
		ImagePrompt: c.ImagePromptFor(gc),
	}
}

// Appended in turn when the base prompt is shorter than the configured minimum.
var promptDetails = []string{
	"Soft natural light gives the whole card a gentle and inviting glow.",
	"Fine decorative details frame the center with balanced open space.",
	"The palette stays harmonious and the mood feels heartfelt and sincere.",
}

// ImagePromptFor builds the replacement image prompt for gc, extended with
// scene detail until it has at least the configured number of words.
func (c *MessageComposer) ImagePromptFor(gc entity.GenerationContext) string {
	prompt := SynthesizeImagePrompt(gc.Occasion, gc.Emotion)
	for i := 0; len(strings.Fields(prompt)) < c.minPromptWords; i++ {
		prompt += " " + promptDetails[i%len(promptDetails)]
	}
	return prompt
}

// SynthesizeImagePrompt builds a descriptive prompt from the occasion and emotion alone.
func SynthesizeImagePrompt(occasion entity.Occasion, emotion entity.Emotion) string {
	occ := strings.ReplaceAll(string(occasion), "_", " ")
	if occ == "" {
		occ = "a special occasion"
	}
	emo := string(emotion)
	if emo == "" {
		emo = "warmth"
	}
	return fmt.Sprintf("A professional greeting card design for %s, conveying %s, with warm colors and elegant composition. "+
		"The scene should include elements that represent celebration and connection.", occ, emo)
}

type keywordHint struct {
	keywords []string
	result   entity.AnalysisResult
}

// Checked in order; the first matching keyword wins. Holiday words come before
// "thank" so that "thanksgiving" is not read as a thank-you.
var analysisHints = []keywordHint{
	{
		keywords: []string{"retirement", "retiring"},
		result: entity.AnalysisResult{
			Relationship: entity.RelationshipColleague,
			Occasion:     entity.OccasionCongratulations,
			Emotion:      entity.EmotionGratitude,
			Explanation:  "This appears to be a retirement message for a colleague.",
		},
	},
	{
		keywords: []string{"birthday"},
		result: entity.AnalysisResult{
			Occasion:    entity.OccasionBirthday,
			Emotion:     entity.EmotionJoy,
			Explanation: "This appears to be a birthday message. Please confirm the relationship.",
		},
	},
	{
		keywords: []string{"holiday", "christmas", "thanksgiving"},
		result: entity.AnalysisResult{
			Occasion:    entity.OccasionHoliday,
			Emotion:     entity.EmotionJoy,
			Explanation: "This appears to be a holiday message. Please confirm the relationship.",
		},
	},
	{
		keywords: []string{"thank", "grateful"},
		result: entity.AnalysisResult{
			Occasion:    entity.OccasionThankYou,
			Emotion:     entity.EmotionGratitude,
			Explanation: "This appears to be a thank you message. Please confirm the relationship.",
		},
	},
	{
		keywords: []string{"congratulat"},
		result: entity.AnalysisResult{
			Occasion:    entity.OccasionCongratulations,
			Emotion:     entity.EmotionExcitement,
			Explanation: "This appears to be a congratulations message. Please confirm the relationship.",
		},
	},
}

// FallbackAnalysis is the rule-based result used when the model reply is unusable.
// Memories always carries the sender's original text.
func (c *MessageComposer) FallbackAnalysis(freeText string) entity.AnalysisResult {
	lower := strings.ToLower(freeText)
	for _, hint := range analysisHints {
		for _, kw := range hint.keywords {
			if strings.Contains(lower, kw) {
				res := hint.result
				res.Memories = freeText
				return res
			}
		}
	}
	return entity.AnalysisResult{
		Memories:    freeText,
		Explanation: "Could not automatically analyze the input. Please select options manually.",
	}
}

func quoted[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%q", string(v))
	}
	return strings.Join(parts, ", ")
}
