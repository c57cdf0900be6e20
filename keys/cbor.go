package keys

import "github.com/fxamacker/cbor/v2"

// CBOR encodes the descriptor as an RFC 8949 core deterministic CBOR array
// [owner, operation, args, version]. It is an alternative to Canonical when
// keys must be reproducible by non-Go services that speak CBOR. It does not
// distinguish integer widths or typed nils, and structs are encoded by field
// name.
type CBOR struct {
	em cbor.EncMode
}

var _ Encoder = (*CBOR)(nil)

func NewCBOR() (*CBOR, error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return nil, err
	}
	return &CBOR{em: em}, nil
}

func (c *CBOR) Encode(d Descriptor) ([]byte, error) {
	return c.em.Marshal([]any{d.Owner, d.Operation, d.Args, d.Version})
}
