// Package inference hosts the image generation step of the service.
package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/V-Sekai-fire/forge/zimage"
)

const (
	DefaultDelay     = 100 * time.Millisecond
	DefaultOutputDir = "/tmp"
)

// Placeholder stands in for a model. It waits Delay and reports a path in
// OutputDir derived from the output format alone; nothing is written.
type Placeholder struct {
	Delay     time.Duration
	OutputDir string
}

func NewPlaceholder(delay time.Duration, outputDir string) *Placeholder {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	return &Placeholder{Delay: delay, OutputDir: outputDir}
}

func (p *Placeholder) Generate(ctx context.Context, req zimage.GenerationRequest) (string, error) {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", fmt.Errorf("generation interrupted: %w", ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("generation interrupted: %w", err)
	}
	return OutputPath(p.OutputDir, req.OutputFormat), nil
}

// OutputPath is where an image of the given format is reported to be saved.
func OutputPath(dir, format string) string {
	return fmt.Sprintf("%s/generated_image.%s", strings.TrimRight(dir, "/"), format)
}
