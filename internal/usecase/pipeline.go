package usecase

import (
	"context"
	"strings"

	"giftcard-core/internal/domain/entity"

	"github.com/rs/zerolog/log"
)

const defaultRecipient = "Friend"

// Pipeline is the entry point for the web layer: analysis of first thoughts,
// then message generation chained into image acquisition. Both operations are
// total; degraded stages fall back instead of failing.
type Pipeline struct {
	extractor *StructuredExtractor
	images    *ImageOrchestrator
}

func NewPipeline(extractor *StructuredExtractor, images *ImageOrchestrator) *Pipeline {
	return &Pipeline{extractor: extractor, images: images}
}

func (p *Pipeline) AnalyzeInput(ctx context.Context, recipientName, freeText string) entity.AnalysisResult {
	return p.extractor.Analyze(ctx, recipientOrDefault(recipientName), freeText)
}

func (p *Pipeline) GenerateDeliverable(ctx context.Context, gc entity.GenerationContext) entity.Deliverable {
	gc.RecipientName = recipientOrDefault(gc.RecipientName)

	msg, fallback := p.extractor.Generate(ctx, gc)
	log.Info().
		Str("occasion", string(gc.Occasion)).
		Bool("message_fallback", fallback).
		Int("prompt_words", len(strings.Fields(msg.ImagePrompt))).
		Msg("message ready")

	img := p.images.Acquire(ctx, msg.ImagePrompt, string(gc.Occasion))

	return entity.Deliverable{
		Message:         msg.Message,
		ImagePrompt:     msg.ImagePrompt,
		Image:           img,
		MessageFallback: fallback,
	}
}

func recipientOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultRecipient
	}
	return strings.TrimSpace(name)
}
