package bus

import (
	"fmt"
	"strings"
)

// ToTopicFilter maps a key expression onto an MQTT topic filter. A "*" chunk
// matches exactly one level and becomes "+"; a trailing "**" matches zero or
// more levels and becomes "#".
func ToTopicFilter(keyExpr string) (string, error) {
	chunks, err := splitKeyExpr(keyExpr)
	if err != nil {
		return "", err
	}
	for i, chunk := range chunks {
		switch chunk {
		case "*":
			chunks[i] = "+"
		case "**":
			if i != len(chunks)-1 {
				return "", fmt.Errorf("%w: %q: \"**\" is only supported as the last chunk", ErrInvalidKeyExpr, keyExpr)
			}
			chunks[i] = "#"
		}
	}
	return strings.Join(chunks, "/"), nil
}

// toTopic maps a wildcard-free key expression onto a publish topic.
func toTopic(keyExpr string) (string, error) {
	chunks, err := splitKeyExpr(keyExpr)
	if err != nil {
		return "", err
	}
	for _, chunk := range chunks {
		if chunk == "*" || chunk == "**" {
			return "", fmt.Errorf("%w: %q: wildcards cannot be published to", ErrInvalidKeyExpr, keyExpr)
		}
	}
	return keyExpr, nil
}

func splitKeyExpr(keyExpr string) ([]string, error) {
	if keyExpr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKeyExpr)
	}
	if strings.ContainsAny(keyExpr, "?#+$") {
		return nil, fmt.Errorf("%w: %q contains a reserved character", ErrInvalidKeyExpr, keyExpr)
	}
	chunks := strings.Split(keyExpr, "/")
	for _, chunk := range chunks {
		if chunk == "" {
			return nil, fmt.Errorf("%w: %q has an empty chunk", ErrInvalidKeyExpr, keyExpr)
		}
		if strings.Contains(chunk, "*") && chunk != "*" && chunk != "**" {
			return nil, fmt.Errorf("%w: %q: partial wildcard chunk %q", ErrInvalidKeyExpr, keyExpr, chunk)
		}
	}
	return chunks, nil
}

// splitSelector separates the key expression of a selector from its parameters.
func splitSelector(selector string) (keyExpr, params string) {
	keyExpr, params, _ = strings.Cut(selector, "?")
	return keyExpr, params
}
