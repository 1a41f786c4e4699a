package usecase

import (
	"context"
	"fmt"

	"giftcard-core/internal/domain/entity"
	"giftcard-core/internal/domain/repository"
	"giftcard-core/internal/jsonutil"
	"giftcard-core/internal/logging"

	"github.com/rs/zerolog/log"
)

var analysisFields = []string{"relationship", "occasion", "emotion", "memories", "explanation"}

// StructuredExtractor coerces free-form text model replies into typed results.
// Extract* methods report failures; Analyze and Generate never do and fall
// back to deterministic content instead.
type StructuredExtractor struct {
	llm      repository.TextGenerator
	composer *MessageComposer
}

func NewStructuredExtractor(llm repository.TextGenerator, composer *MessageComposer) *StructuredExtractor {
	return &StructuredExtractor{llm: llm, composer: composer}
}

// ExtractAnalysis asks the model to classify the sender's first thoughts.
func (e *StructuredExtractor) ExtractAnalysis(ctx context.Context, recipientName, freeText string) (entity.AnalysisResult, error) {
	reply, err := e.llm.Generate(ctx, e.composer.BuildAnalysisPrompt(recipientName, freeText))
	if err != nil {
		return entity.AnalysisResult{}, fmt.Errorf("text backend: %w", err)
	}

	fields, err := jsonutil.StringFields(reply, analysisFields...)
	if err != nil {
		log.Debug().Str("raw", logging.Truncate(reply, 500)).Msg("unparseable analysis reply")
		return entity.AnalysisResult{}, fmt.Errorf("%w: %v", entity.ErrExtraction, err)
	}

	return entity.AnalysisResult{
		Relationship: entity.ParseRelationship(fields["relationship"]),
		Occasion:     entity.ParseOccasion(fields["occasion"]),
		Emotion:      entity.ParseEmotion(fields["emotion"]),
		Memories:     fields["memories"],
		Explanation:  fields["explanation"],
	}, nil
}

// ExtractMessage asks the model for a message and image prompt. The reply is
// not post-validated here.
func (e *StructuredExtractor) ExtractMessage(ctx context.Context, gc entity.GenerationContext) (entity.MessageResult, error) {
	reply, err := e.llm.Generate(ctx, e.composer.BuildGenerationPrompt(gc))
	if err != nil {
		return entity.MessageResult{}, fmt.Errorf("text backend: %w", err)
	}

	fields, err := jsonutil.StringFields(reply, "message")
	if err != nil {
		log.Debug().Str("raw", logging.Truncate(reply, 500)).Msg("unparseable generation reply")
		return entity.MessageResult{}, fmt.Errorf("%w: %v", entity.ErrExtraction, err)
	}

	prompt, ok := fields["image_prompt"]
	if !ok {
		prompt, ok = fields["imagePrompt"]
	}
	if !ok {
		return entity.MessageResult{}, fmt.Errorf("%w: missing required field \"image_prompt\"", entity.ErrExtraction)
	}

	return entity.MessageResult{Message: fields["message"], ImagePrompt: prompt}, nil
}

// Analyze returns the model's suggestions or the rule-based fallback.
func (e *StructuredExtractor) Analyze(ctx context.Context, recipientName, freeText string) entity.AnalysisResult {
	res, err := e.ExtractAnalysis(ctx, recipientName, freeText)
	if err != nil {
		log.Warn().Str("stage", "analyze").Err(err).Msg("using fallback analysis")
		return e.composer.FallbackAnalysis(freeText)
	}
	return res
}

// Generate returns a validated message, or the template fallback when the
// model fails or its reply does not pass PostValidate.
func (e *StructuredExtractor) Generate(ctx context.Context, gc entity.GenerationContext) (entity.MessageResult, bool) {
	res, err := e.ExtractMessage(ctx, gc)
	if err == nil {
		res, err = e.composer.PostValidate(res, gc)
	}
	if err != nil {
		log.Warn().Str("stage", "generate").Err(err).Msg("using fallback message")
		return e.composer.FallbackMessage(gc), true
	}
	return res, false
}
