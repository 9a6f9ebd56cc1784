package codec

import "fmt"

// Limit wraps another codec and bounds payload sizes in both directions.
// A non-positive bound disables that check.
//
// MaxEncode keeps huge result sets (e.g. unbounded findMany) out of a shared
// cache; the interceptor treats the error as a skipped write. MaxDecode
// protects readers from oversized entries written by someone else.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxEncode int
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("codec: encoded payload too large: %d > %d", len(b), c.MaxEncode)
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
