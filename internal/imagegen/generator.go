// Package imagegen wraps the external image generation service.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrEmptyPayload is returned when the service answers without any image bytes.
var ErrEmptyPayload = errors.New("no image returned by the generation service")

// Generator turns a prompt into encoded image bytes.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, prompt string) ([]byte, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

// Mode selects which service endpoint produces the image.
type Mode string

const (
	// ModeGenerateContent asks a multimodal model for IMAGE+TEXT output and keeps the
	// first inline image part.
	ModeGenerateContent Mode = "generate_content"
	// ModeImagen calls the dedicated image generation endpoint.
	ModeImagen Mode = "imagen"
)

// Defaults used when Options leaves a field empty. Model and aspect ratio depend on
// the mode; the ratios are the widest each endpoint accepts.
const (
	DefaultContentModel       = "nano-banana-pro-preview"
	DefaultContentAspectRatio = "21:9"
	DefaultImagenModel        = "imagen-4.0-generate-001"
	DefaultImagenAspectRatio  = "16:9"
	DefaultMIMEType           = "image/png"
	DefaultSafetyLevel        = "BLOCK_ONLY_HIGH"
)

var aspectRatios = map[Mode][]string{
	ModeGenerateContent: {"1:1", "2:3", "3:2", "3:4", "4:3", "9:16", "16:9", "21:9"},
	ModeImagen:          {"1:1", "3:4", "4:3", "9:16", "16:9"},
}

var imagenMIMETypes = []string{"image/png", "image/jpeg"}

// SupportedAspectRatios lists the ratios the mode's endpoint accepts.
func SupportedAspectRatios(mode Mode) []string {
	return append([]string(nil), aspectRatios[mode]...)
}

// Options configures a GenAI generator.
type Options struct {
	APIKey      string
	Mode        Mode
	Model       string
	MIMEType    string
	AspectRatio string
	// SafetyLevel is a block threshold name such as BLOCK_ONLY_HIGH.
	SafetyLevel string
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeGenerateContent
	}
	if o.Model == "" {
		o.Model = DefaultContentModel
		if o.Mode == ModeImagen {
			o.Model = DefaultImagenModel
		}
	}
	if o.MIMEType == "" {
		o.MIMEType = DefaultMIMEType
	}
	if o.AspectRatio == "" {
		o.AspectRatio = DefaultContentAspectRatio
		if o.Mode == ModeImagen {
			o.AspectRatio = DefaultImagenAspectRatio
		}
	}
	if o.SafetyLevel == "" {
		o.SafetyLevel = DefaultSafetyLevel
	}
	return o
}

// Validate checks the output constraints against what the selected mode accepts.
// Empty fields are validated as their defaults.
func (o Options) Validate() error {
	o = o.withDefaults()

	ratios, ok := aspectRatios[o.Mode]
	if !ok {
		return fmt.Errorf("unknown generation mode %q", o.Mode)
	}
	if !slices.Contains(ratios, o.AspectRatio) {
		return fmt.Errorf("aspect ratio %q is not supported in %s mode (supported: %s)",
			o.AspectRatio, o.Mode, strings.Join(ratios, ", "))
	}
	if o.Mode == ModeImagen {
		if !strings.HasPrefix(o.Model, "imagen-") {
			return fmt.Errorf("model %q cannot serve imagen mode", o.Model)
		}
		if !slices.Contains(imagenMIMETypes, o.MIMEType) {
			return fmt.Errorf("mime type %q is not supported in imagen mode", o.MIMEType)
		}
	}
	return nil
}
