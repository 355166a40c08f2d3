package codec

import (
	"encoding/json"
	"fmt"

	"github.com/V-Sekai-fire/forge/zimage"
)

const jsonVersion = 1

// JSON encodes the reply as a small text record:
//
//	{"version":1,"status":"success","output_path":"/tmp/generated_image.png"}
//	{"version":1,"status":"error","reason":"Invalid request format"}
type JSON struct{}

type jsonReply struct {
	Version    int    `json:"version"`
	Status     string `json:"status"`
	OutputPath string `json:"output_path,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func (JSON) Name() string { return NameJSON }

func (JSON) Version() int { return jsonVersion }

func (JSON) Encode(resp zimage.GenerationResponse) ([]byte, error) {
	return json.Marshal(jsonReply{
		Version:    jsonVersion,
		Status:     string(resp.Status),
		OutputPath: resp.OutputPath,
		Reason:     resp.Reason,
	})
}

func (JSON) Decode(data []byte) (zimage.GenerationResponse, error) {
	var r jsonReply
	if err := json.Unmarshal(data, &r); err != nil {
		return zimage.GenerationResponse{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Version != jsonVersion {
		return zimage.GenerationResponse{}, fmt.Errorf("%w: json v%d", ErrVersion, r.Version)
	}
	return zimage.GenerationResponse{
		Status:     zimage.Status(r.Status),
		OutputPath: r.OutputPath,
		Reason:     r.Reason,
		ResultData: []byte{},
	}, nil
}
