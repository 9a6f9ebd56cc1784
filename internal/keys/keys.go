// Package keys builds the storage keys used by querycache.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// hashLen is the number of hex chars kept from the digest.
const hashLen = 16

// canonical encodes with RFC 8949 core deterministic rules (sorted map keys,
// shortest ints) so equal argument trees always hash the same.
var canonical = sync.OnceValues(func() (cbor.EncMode, error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	return eo.EncMode()
})

// Hash returns a short, deterministic digest of args.
func Hash(args any) (string, error) {
	em, err := canonical()
	if err != nil {
		return "", err
	}
	b, err := em.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("keys: encode args: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:hashLen], nil
}

// Derived returns "<model>@<hash(args)>".
func Derived(model string, args any) (string, error) {
	h, err := Hash(args)
	if err != nil {
		return "", err
	}
	return model + "@" + h, nil
}

// Qualify prefixes key with namespace when namespace is set.
func Qualify(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}
