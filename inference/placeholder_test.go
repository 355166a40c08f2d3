package inference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V-Sekai-fire/forge/zimage"
)

func TestPlaceholderPathDependsOnFormatOnly(t *testing.T) {
	p := NewPlaceholder(0, "")

	a := zimage.DefaultRequest()
	a.Prompt = "cat"
	b := zimage.GenerationRequest{Prompt: "dog", Width: 1, Height: 2, Seed: 99, NumSteps: 50, GuidanceScale: 7.5, OutputFormat: "png"}

	pathA, err := p.Generate(context.Background(), a)
	require.NoError(t, err)
	pathB, err := p.Generate(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/generated_image.png", pathA)
	assert.Equal(t, pathA, pathB)

	b.OutputFormat = "jpg"
	pathB, err = p.Generate(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/generated_image.jpg", pathB)
}

func TestPlaceholderWaits(t *testing.T) {
	p := NewPlaceholder(30*time.Millisecond, "/var/tmp/")

	start := time.Now()
	path, err := p.Generate(context.Background(), zimage.DefaultRequest())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, "/var/tmp/generated_image.png", path)
}

func TestPlaceholderCancelled(t *testing.T) {
	p := NewPlaceholder(time.Minute, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, zimage.DefaultRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
