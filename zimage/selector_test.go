package zimage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	cases := []struct {
		name     string
		selector string
		want     GenerationRequest
	}{
		{
			name:     "defaults",
			selector: "zimage/generate?",
			want:     DefaultRequest(),
		},
		{
			name:     "prompt and size",
			selector: "zimage/generate?prompt=cat&width=512&height=512",
			want: GenerationRequest{
				Prompt: "cat", Width: 512, Height: 512, NumSteps: 4, OutputFormat: "png",
			},
		},
		{
			name:     "output format",
			selector: "zimage/generate?prompt=dog&output_format=jpg",
			want: GenerationRequest{
				Prompt: "dog", Width: 1024, Height: 1024, NumSteps: 4, OutputFormat: "jpg",
			},
		},
		{
			name:     "every field",
			selector: "zimage/generate/extra?prompt=a+red%20fox&width=640&height=480&seed=-7&num_steps=12&guidance_scale=3.5&output_format=webp",
			want: GenerationRequest{
				Prompt: "a red fox", Width: 640, Height: 480, Seed: -7, NumSteps: 12, GuidanceScale: 3.5, OutputFormat: "webp",
			},
		},
		{
			name:     "first occurrence wins",
			selector: "zimage/generate?prompt=first&prompt=second&width=1&width=2",
			want: GenerationRequest{
				Prompt: "first", Width: 1, Height: 1024, NumSteps: 4, OutputFormat: "png",
			},
		},
		{
			name:     "blank values fall back",
			selector: "zimage/generate?width=&width=300&output_format=",
			want: GenerationRequest{
				Width: 300, Height: 1024, NumSteps: 4, OutputFormat: "png",
			},
		},
		{
			name:     "only first question mark splits",
			selector: "zimage/generate?prompt=why?&seed=3",
			want: GenerationRequest{
				Prompt: "why?", Width: 1024, Height: 1024, Seed: 3, NumSteps: 4, OutputFormat: "png",
			},
		},
		{
			name:     "decimal only",
			selector: "zimage/generate?width=010",
			want: GenerationRequest{
				Width: 10, Height: 1024, NumSteps: 4, OutputFormat: "png",
			},
		},
		{
			name:     "semicolon is text",
			selector: "zimage/generate?prompt=a;b&output_format=jpg",
			want: GenerationRequest{
				Prompt: "a;b", Width: 1024, Height: 1024, NumSteps: 4, OutputFormat: "jpg",
			},
		},
		{
			name:     "stray percent kept",
			selector: "zimage/generate?prompt=50%off+today%21",
			want: GenerationRequest{
				Prompt: "50%off today!", Width: 1024, Height: 1024, NumSteps: 4, OutputFormat: "png",
			},
		},
		{
			name:     "bad escape in unknown key",
			selector: "zimage/generate?foo=%zz&output_format=jpg",
			want: GenerationRequest{
				Width: 1024, Height: 1024, NumSteps: 4, OutputFormat: "jpg",
			},
		},
		{
			name:     "pairs without equals skipped",
			selector: "zimage/generate?prompt&width=64&&",
			want: GenerationRequest{
				Width: 64, Height: 1024, NumSteps: 4, OutputFormat: "png",
			},
		},
		{
			name:     "unknown keys ignored",
			selector: "zimage/generate?model=flux&prompt=x",
			want: GenerationRequest{
				Prompt: "x", Width: 1024, Height: 1024, NumSteps: 4, OutputFormat: "png",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSelector(tc.selector)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSelectorInvalidFormat(t *testing.T) {
	for _, selector := range []string{"zimage/generate", "zimage/generate/prompt=cat", ""} {
		_, err := ParseSelector(selector)
		assert.ErrorIs(t, err, ErrInvalidRequestFormat, selector)
	}
}

func TestParseSelectorInvalidParameters(t *testing.T) {
	cases := map[string]string{
		"width":          "zimage/generate?width=abc",
		"height":         "zimage/generate?height=1.5",
		"seed":           "zimage/generate?seed=0x10",
		"num_steps":      "zimage/generate?num_steps=four",
		"guidance_scale": "zimage/generate?guidance_scale=high",
	}
	for field, selector := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := ParseSelector(selector)
			require.ErrorIs(t, err, ErrInvalidParameters)
			assert.Contains(t, err.Error(), "'"+field+"'")
		})
	}
}

func TestSelectorRoundTrip(t *testing.T) {
	req := GenerationRequest{
		Prompt:        "a cat & a dog = friends?",
		Width:         768,
		Height:        512,
		Seed:          42,
		NumSteps:      8,
		GuidanceScale: 1.25,
		OutputFormat:  "jpg",
	}
	selector := req.Selector(GenerateKey)
	assert.Contains(t, selector, "zimage/generate?prompt=")

	got, err := ParseSelector(selector)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestResponses(t *testing.T) {
	ok := Success("/tmp/generated_image.png")
	assert.Equal(t, StatusSuccess, ok.Status)
	assert.Equal(t, "/tmp/generated_image.png", ok.OutputPath)
	assert.Empty(t, ok.ResultData)

	bad := Failure(ReasonInvalidFormat)
	assert.Equal(t, StatusError, bad.Status)
	assert.Equal(t, "Invalid request format", bad.Reason)
	assert.Empty(t, bad.OutputPath)
}

func TestUnescape(t *testing.T) {
	cases := map[string]string{
		"a+b":       "a b",
		"a%20b":     "a b",
		"100%":      "100%",
		"%zz%41":    "%zzA",
		"50%off%2":  "50%off%2",
		"caf%C3%A9": "café",
	}
	for in, want := range cases {
		assert.Equal(t, want, unescape(in), in)
	}
}
