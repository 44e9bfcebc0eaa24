package codec

import (
	"bytes"
	"encoding/gob"
)

// Binary is the compact, platform-independent binary codec, backed by
// stdlib encoding/gob. No third-party compact binary codec generic enough
// to serialise an arbitrary V is a good fit here (protobuf needs a
// generated schema per type, which doesn't suit a generic Codec[V]), so
// this is a deliberate stdlib choice rather than a gap.
type Binary[V any] struct{}

// NewBinary returns a gob-backed Binary codec for V.
func NewBinary[V any]() Binary[V] { return Binary[V]{} }

func (Binary[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes(), encodeErr(err)
}

func (Binary[V]) Decode(b []byte) (V, error) {
	var v V
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&v)
	return v, decodeErr(err)
}
