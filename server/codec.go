package server

import (
	"github.com/fxamacker/cbor/v2"
)

// CodecName is the content subtype both transports negotiate:
// application/cbor for Connect and application/grpc+cbor for gRPC.
const CodecName = "cbor"

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("cbor: " + err.Error())
	}
	cborEncMode = em
}

// Codec marshals service messages as canonical CBOR. It satisfies both
// connect.Codec and the gRPC encoding.Codec interface.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
