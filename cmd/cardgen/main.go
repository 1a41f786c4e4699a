package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"giftcard-core/internal/bootstrap"
	"giftcard-core/internal/config"
	"giftcard-core/internal/domain/entity"
	"giftcard-core/internal/logging"
	"giftcard-core/internal/usecase"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	envFileFlag string

	recipientFlag    string
	relationshipFlag string
	occasionFlag     string
	emotionFlag      string
	memoriesFlag     string
	outDirFlag       string
)

var rootCmd = &cobra.Command{
	Use:   "cardgen",
	Short: "Generate gift card messages and images from the command line",
	Long: `cardgen runs the same analysis and generation pipeline as the HTTP service,
configured from the same environment variables.

Examples:
  cardgen analyze --recipient Sam "Thanks for being a great mentor"
  cardgen generate --recipient Sam --occasion thank_you --emotion gratitude --memories "great mentor" -o ./out`,
	SilenceUsage: true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [first thoughts]",
	Short: "Suggest relationship, occasion and emotion for free-form text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a card message and image to the output directory",
	RunE:  runGenerate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVarP(&recipientFlag, "recipient", "r", "", "Recipient name")

	generateCmd.Flags().StringVar(&relationshipFlag, "relationship", "", "One of: family, friend, colleague, other")
	generateCmd.Flags().StringVar(&occasionFlag, "occasion", "", "One of: birthday, holiday, thank_you, congratulations, other")
	generateCmd.Flags().StringVar(&emotionFlag, "emotion", "", "One of: joy, gratitude, love, excitement")
	generateCmd.Flags().StringVarP(&memoriesFlag, "memories", "m", "", "Shared memories to weave into the message")
	generateCmd.Flags().StringVarP(&outDirFlag, "out", "o", ".", "Directory for card.txt and the card image")

	rootCmd.AddCommand(analyzeCmd, generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildPipeline(ctx context.Context) (*usecase.Pipeline, error) {
	cfg, err := config.Load(envFileFlag)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel, "console")
	return bootstrap.NewPipeline(ctx, cfg)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pipeline, err := buildPipeline(ctx)
	if err != nil {
		return err
	}

	res := pipeline.AnalyzeInput(ctx, recipientFlag, strings.Join(args, " "))
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	gc, err := generationContext()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pipeline, err := buildPipeline(ctx)
	if err != nil {
		return err
	}

	d := pipeline.GenerateDeliverable(ctx, gc)

	if err := os.MkdirAll(outDirFlag, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	text := d.Message + "\n\n---\nImage prompt: " + d.ImagePrompt + "\n"
	if err := os.WriteFile(filepath.Join(outDirFlag, "card.txt"), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	imagePath := filepath.Join(outDirFlag, "card"+extensionFor(d.Image.MimeType))
	if err := os.WriteFile(imagePath, d.Image.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	log.Info().
		Str("image", imagePath).
		Str("provenance", string(d.Image.Provenance)).
		Bool("message_fallback", d.MessageFallback).
		Msg("card written")
	fmt.Fprintln(cmd.OutOrStdout(), d.Message)
	return nil
}

func generationContext() (entity.GenerationContext, error) {
	gc := entity.GenerationContext{
		RecipientName: recipientFlag,
		Relationship:  entity.Relationship(strings.ToLower(relationshipFlag)),
		Occasion:      entity.Occasion(strings.ToLower(occasionFlag)),
		Emotion:       entity.Emotion(strings.ToLower(emotionFlag)),
		Memories:      memoriesFlag,
	}
	switch {
	case gc.Relationship != "" && !gc.Relationship.Valid():
		return gc, fmt.Errorf("%w: relationship %q", entity.ErrInvalidRequest, relationshipFlag)
	case gc.Occasion != "" && !gc.Occasion.Valid():
		return gc, fmt.Errorf("%w: occasion %q", entity.ErrInvalidRequest, occasionFlag)
	case gc.Emotion != "" && !gc.Emotion.Valid():
		return gc, fmt.Errorf("%w: emotion %q", entity.ErrInvalidRequest, emotionFlag)
	}
	return gc, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
