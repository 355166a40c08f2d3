package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V-Sekai-fire/forge/zimage"
)

func TestRequestFromFlags(t *testing.T) {
	root := NewCLI()
	cmd, _, err := root.Find([]string{"generate"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--width", "512", "--seed", "42", "--output-format", "jpg"}))

	req, err := requestFromFlags(cmd, "a cat")
	require.NoError(t, err)

	want := zimage.DefaultRequest()
	want.Prompt = "a cat"
	want.Width = 512
	want.Seed = 42
	want.OutputFormat = "jpg"
	assert.Equal(t, want, req)

	parsed, err := zimage.ParseSelector(req.Selector(zimage.GenerateKey))
	require.NoError(t, err)
	assert.Equal(t, want, parsed)
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, zimage.Success("/tmp/generated_image.png"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "STATUS"))
	assert.Contains(t, lines[1], "success")
	assert.Contains(t, lines[1], "/tmp/generated_image.png")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[1]), "0"))
}

func TestPrintServices(t *testing.T) {
	var buf bytes.Buffer
	printServices(&buf, []string{"forge/services/zeta", "forge/services/qwen3vl"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "SERVICE", strings.TrimSpace(lines[0]))
	assert.Equal(t, "forge/services/qwen3vl", strings.TrimSpace(lines[1]))
	assert.Equal(t, "forge/services/zeta", strings.TrimSpace(lines[2]))
}

func TestCommands(t *testing.T) {
	root := NewCLI()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"generate", "query", "services", "broker"}, names)
}

func TestEnvHelp(t *testing.T) {
	t.Setenv("ZIMAGE_ENCODING", "json")
	root := NewCLI()

	assert.Contains(t, root.Long, "Environment Variables:")
	assert.Contains(t, root.Long, "MQTT_BROKER")
	assert.Contains(t, root.Long, "Reply encoding: flatbuffers or json (default flatbuffers) (current: json)")
	assert.Less(t, strings.Index(root.Long, "MQTT_BROKER"), strings.Index(root.Long, "ZIMAGE_CLIENT_PREFIX"))
}
