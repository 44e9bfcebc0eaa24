package codec

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON is the recommended-default codec, backed by json-iterator (a direct
// dependency of 1xxz188-test_badger) configured for byte-for-byte
// compatibility with encoding/json, so values round-trip the same way they
// would with the stdlib encoder but faster.
type JSON[V any] struct{}

// NewJSON returns a JSON codec for V.
func NewJSON[V any]() JSON[V] { return JSON[V]{} }

func (JSON[V]) Encode(v V) ([]byte, error) {
	b, err := jsonAPI.Marshal(v)
	return b, encodeErr(err)
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := jsonAPI.Unmarshal(b, &v)
	return v, decodeErr(err)
}
