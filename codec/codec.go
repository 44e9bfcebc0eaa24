// Package codec implements the byte codec contract every value stored by
// the disk tier (and, optionally, sized by the memory tier) passes through
// to become bytes and back. krisalay/in-memory-cache caches `any` values in
// memory and never serialises them, so this package has no direct
// upstream equivalent; it leans on json-iterator for JSON, stdlib gob for
// Binary, and snappy/klauspost-flate/zlib for Compressed.
package codec

import "github.com/tiercache/tiercache/errs"

// Codec encodes a typed value to bytes and back. Both directions are total
// or return a *errs.CodecFailure.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(b []byte) (V, error)
}

func encodeErr(err error) error {
	if err == nil {
		return nil
	}
	return &errs.CodecFailure{Op: errs.Encode, Err: err}
}

func decodeErr(err error) error {
	if err == nil {
		return nil
	}
	return &errs.CodecFailure{Op: errs.Decode, Err: err}
}
