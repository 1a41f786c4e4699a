package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"giftcard-core/internal/domain/entity"
	"giftcard-core/internal/domain/repository"
	"giftcard-core/internal/usecase"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type AnalyzeRequest struct {
	RecipientName   string `json:"recipient_name" form:"recipient_name" validate:"required,max=100"`
	InitialThoughts string `json:"initial_thoughts" form:"initial_thoughts" validate:"max=4000"`
}

// Categorical values are lowercased before validation; empty means "not chosen".
type GenerateRequest struct {
	RecipientName string `json:"recipient_name" form:"recipient_name" validate:"max=100"`
	Relationship  string `json:"relationship" form:"relationship" validate:"omitempty,oneof=family friend colleague other"`
	Occasion      string `json:"occasion" form:"occasion" validate:"omitempty,oneof=birthday holiday thank_you congratulations other"`
	Emotion       string `json:"emotion" form:"emotion" validate:"omitempty,oneof=joy gratitude love excitement"`
	Memories      string `json:"memories" form:"memories" validate:"max=4000"`
}

type GenerateResponse struct {
	Message         string `json:"message"`
	ImagePrompt     string `json:"image_prompt"`
	Image           string `json:"image"` // data URL
	Provenance      string `json:"provenance"`
	MessageFallback bool   `json:"message_fallback"`
}

type CardHandler struct {
	pipeline *usecase.Pipeline
	limiter  repository.UsageLimiter
}

// NewCardHandler wires the pipeline to HTTP. limiter may be nil, which disables quotas.
func NewCardHandler(pipeline *usecase.Pipeline, limiter repository.UsageLimiter) *CardHandler {
	return &CardHandler{pipeline: pipeline, limiter: limiter}
}

func (h *CardHandler) HandleAnalyze(c *fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	req.RecipientName = strings.TrimSpace(req.RecipientName)
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err)})
	}

	res := h.pipeline.AnalyzeInput(c.UserContext(), req.RecipientName, req.InitialThoughts)
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *CardHandler) HandleGenerate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	req.normalize()
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err)})
	}
	gc := req.toContext()

	clientID := c.IP()
	if err := h.checkQuota(c.UserContext(), clientID); err != nil {
		if errors.Is(err, entity.ErrQuotaExceeded) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error().Err(err).Str("client", clientID).Msg("quota check failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal gateway error"})
	}

	d := h.pipeline.GenerateDeliverable(c.UserContext(), gc)

	if h.limiter != nil {
		go func() {
			// The request context is gone by the time this runs.
			bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.limiter.Increment(bgCtx, clientID); err != nil {
				log.Warn().Err(err).Str("client", clientID).Msg("failed to record usage")
			}
		}()
	}

	c.Set("X-Image-Provenance", string(d.Image.Provenance))
	return c.Status(fiber.StatusOK).JSON(GenerateResponse{
		Message:         d.Message,
		ImagePrompt:     d.ImagePrompt,
		Image:           DataURL(d.Image.MimeType, d.Image.Data),
		Provenance:      string(d.Image.Provenance),
		MessageFallback: d.MessageFallback,
	})
}

func (h *CardHandler) checkQuota(ctx context.Context, clientID string) error {
	if h.limiter == nil {
		return nil
	}
	allowed, err := h.limiter.CheckLimit(ctx, clientID)
	if err != nil {
		return err
	}
	if !allowed {
		return entity.ErrQuotaExceeded
	}
	return nil
}

func (r *GenerateRequest) normalize() {
	r.RecipientName = strings.TrimSpace(r.RecipientName)
	r.Relationship = strings.ToLower(strings.TrimSpace(r.Relationship))
	r.Occasion = strings.ToLower(strings.TrimSpace(r.Occasion))
	r.Emotion = strings.ToLower(strings.TrimSpace(r.Emotion))
	r.Memories = strings.TrimSpace(r.Memories)
}

func (r GenerateRequest) toContext() entity.GenerationContext {
	return entity.GenerationContext{
		RecipientName: r.RecipientName,
		Relationship:  entity.Relationship(r.Relationship),
		Occasion:      entity.Occasion(r.Occasion),
		Emotion:       entity.Emotion(r.Emotion),
		Memories:      r.Memories,
	}
}

// validationMessage turns the first validation failure into a client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return entity.ErrInvalidRequest.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("unsupported %s: %v", fe.Field(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("invalid %s", fe.Field())
	}
}

func DataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
