package codec

// Chained applies a pure transform after encode and its inverse before
// decode — e.g. a checksum wrapper or an encryption layer. Encryption
// itself is named as a capability but not designed in detail; Chained is
// the pluggable seam such a codec would attach to.
type Chained[V any] struct {
	inner Codec[V]
	up    func([]byte) ([]byte, error)
	down  func([]byte) ([]byte, error)
}

// NewChained wraps inner, applying up after Encode and down before Decode.
func NewChained[V any](inner Codec[V], up, down func([]byte) ([]byte, error)) Chained[V] {
	return Chained[V]{inner: inner, up: up, down: down}
}

func (c Chained[V]) Encode(v V) ([]byte, error) {
	b, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	out, err := c.up(b)
	return out, encodeErr(err)
}

func (c Chained[V]) Decode(b []byte) (V, error) {
	var zero V
	raw, err := c.down(b)
	if err != nil {
		return zero, decodeErr(err)
	}
	return c.inner.Decode(raw)
}
