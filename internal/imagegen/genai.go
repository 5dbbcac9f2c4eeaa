package imagegen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"oops/internal/logging"
)

// =============================================================================
// GOOGLE GENAI IMAGE GENERATOR
// =============================================================================

// GenAI generates images through the Gemini API.
type GenAI struct {
	client *genai.Client
	opts   Options
}

// NewGenAI creates a Gemini-backed generator.
func NewGenAI(ctx context.Context, opts Options) (*GenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logging.Get(logging.CategoryImageGen).Info("GenAI generator ready: mode=%s model=%s ratio=%s", opts.Mode, opts.Model, opts.AspectRatio)
	return &GenAI{client: client, opts: opts}, nil
}

// Name returns the generator name.
func (g *GenAI) Name() string {
	return fmt.Sprintf("genai:%s:%s", g.opts.Mode, g.opts.Model)
}

// Generate produces one image for prompt.
func (g *GenAI) Generate(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("image prompt required")
	}

	timer := logging.StartTimer(logging.CategoryImageGen, "GenAI.Generate")
	defer timer.StopWithThreshold(30 * time.Second)

	if g.opts.Mode == ModeImagen {
		return g.generateImages(ctx, prompt)
	}
	return g.generateContent(ctx, prompt)
}

// generateContent asks for an inline image. The Gemini API takes no output MIME type
// here, so the format is enforced on the response instead.
func (g *GenAI) generateContent(ctx context.Context, prompt string) ([]byte, error) {
	threshold := genai.HarmBlockThreshold(g.opts.SafetyLevel)
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: g.opts.AspectRatio},
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: threshold},
			{Category: genai.HarmCategoryHateSpeech, Threshold: threshold},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: threshold},
			{Category: genai.HarmCategoryDangerousContent, Threshold: threshold},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.opts.Model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate content failed: %w", err)
	}
	return imageFromContent(resp, g.opts.MIMEType)
}

func (g *GenAI) generateImages(ctx context.Context, prompt string) ([]byte, error) {
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages:    1,
		AspectRatio:       g.opts.AspectRatio,
		OutputMIMEType:    g.opts.MIMEType,
		SafetyFilterLevel: genai.SafetyFilterLevel(g.opts.SafetyLevel),
	}

	resp, err := g.client.Models.GenerateImages(ctx, g.opts.Model, prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate images failed: %w", err)
	}
	return imageFromImages(resp)
}

// imageFromContent returns the first inline image of the first candidate. An image in
// another format than want is an error, not a payload.
func imageFromContent(resp *genai.GenerateContentResponse, want string) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyPayload
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		if cand != nil && cand.FinishReason != "" {
			return nil, fmt.Errorf("%w (finish reason %s)", ErrEmptyPayload, cand.FinishReason)
		}
		return nil, ErrEmptyPayload
	}
	var other string
	for _, part := range cand.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		got := part.InlineData.MIMEType
		if got == "" || want == "" || strings.EqualFold(got, want) {
			return part.InlineData.Data, nil
		}
		other = got
	}
	if other != "" {
		return nil, fmt.Errorf("generation service returned %s, want %s", other, want)
	}
	return nil, ErrEmptyPayload
}

// imageFromImages returns the bytes of the first generated image.
func imageFromImages(resp *genai.GenerateImagesResponse) ([]byte, error) {
	if resp == nil {
		return nil, ErrEmptyPayload
	}
	for _, img := range resp.GeneratedImages {
		if img == nil {
			continue
		}
		if img.Image != nil && len(img.Image.ImageBytes) > 0 {
			return img.Image.ImageBytes, nil
		}
		if img.RAIFilteredReason != "" {
			return nil, fmt.Errorf("%w (filtered: %s)", ErrEmptyPayload, img.RAIFilteredReason)
		}
	}
	return nil, ErrEmptyPayload
}
