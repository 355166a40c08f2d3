package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/V-Sekai-fire/forge/zimage"
)

const flatBuffersVersion = 2

// FlatBuffers encodes the reply as a GenerationReply table (see reply.fbs)
// whose extensions vector holds the status record as CBOR.
type FlatBuffers struct{}

type extensions struct {
	Status     string `cbor:"status"`
	OutputPath string `cbor:"output_path,omitempty"`
	Reason     string `cbor:"reason,omitempty"`
}

var extensionsEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func (FlatBuffers) Name() string { return NameFlatBuffers }

func (FlatBuffers) Version() int { return flatBuffersVersion }

func (FlatBuffers) Encode(resp zimage.GenerationResponse) ([]byte, error) {
	ext, err := extensionsEncMode.Marshal(extensions{
		Status:     string(resp.Status),
		OutputPath: resp.OutputPath,
		Reason:     resp.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("encode extensions: %w", err)
	}

	resultData := resp.ResultData
	if resultData == nil {
		resultData = []byte{}
	}

	b := flatbuffers.NewBuilder(64 + len(ext) + len(resultData))
	extOffset := b.CreateByteVector(ext)
	dataOffset := b.CreateByteVector(resultData)

	GenerationReplyStart(b)
	GenerationReplyAddVersion(b, flatBuffersVersion)
	GenerationReplyAddResultData(b, dataOffset)
	GenerationReplyAddExtensions(b, extOffset)
	b.Finish(GenerationReplyEnd(b))
	return b.FinishedBytes(), nil
}

func (FlatBuffers) Decode(data []byte) (resp zimage.GenerationResponse, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return resp, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	defer func() {
		if r := recover(); r != nil {
			resp, err = zimage.GenerationResponse{}, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	reply := GetRootAsGenerationReply(data, 0)
	if v := reply.Version(); v != flatBuffersVersion {
		return resp, fmt.Errorf("%w: flatbuffers v%d", ErrVersion, v)
	}

	var ext extensions
	if err := cbor.Unmarshal(reply.ExtensionsBytes(), &ext); err != nil {
		return resp, fmt.Errorf("%w: extensions: %v", ErrMalformed, err)
	}

	resultData := append([]byte{}, reply.ResultDataBytes()...)
	return zimage.GenerationResponse{
		Status:     zimage.Status(ext.Status),
		OutputPath: ext.OutputPath,
		Reason:     ext.Reason,
		ResultData: resultData,
	}, nil
}
