// Package codec holds the reply encodings of the generation service.
//
// Each process answers with exactly one codec. Both encodings carry an
// explicit schema version and are deterministic: encoding the same response
// twice yields identical bytes.
package codec

import (
	"errors"
	"fmt"
	"sort"

	"github.com/V-Sekai-fire/forge/zimage"
)

const (
	NameFlatBuffers = "flatbuffers"
	NameJSON        = "json"

	// Default is used when no encoding is configured.
	Default = NameFlatBuffers
)

var (
	ErrUnknownEncoding = errors.New("unknown reply encoding")
	ErrMalformed       = errors.New("malformed reply")
	ErrVersion         = errors.New("unsupported reply version")
)

type Codec interface {
	Name() string
	Version() int
	Encode(resp zimage.GenerationResponse) ([]byte, error)
	Decode(data []byte) (zimage.GenerationResponse, error)
}

var codecs = map[string]Codec{
	NameFlatBuffers: FlatBuffers{},
	NameJSON:        JSON{},
}

// ForName returns the codec registered under name.
func ForName(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownEncoding, name, Names())
	}
	return c, nil
}

func Names() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
