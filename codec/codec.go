// Package codec converts query results to and from the bytes handed to a
// provider. Every codec here is safe for concurrent use.
package codec

// Codec encodes/decodes values V to []byte for storage.
//
// A cached nil or zero result must round-trip as a present value: Decode is
// only ever called for entries the provider reported as present.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
