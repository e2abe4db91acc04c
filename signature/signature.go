// Package signature fingerprints the content of a container mapping.
//
// The fingerprint covers everything view generation depends on: both
// containers, every set, type and property mapping, conditions, query
// views and function import mappings. Source locations are not part of it.
// Pre-generated views record the fingerprint of the mapping they were
// built from and are rejected when it changes.
package signature

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"

	"github.com/syssam/csmap/mapping"
)

// Signature is the 128-bit fingerprint of a container mapping.
type Signature [16]byte

// String returns the signature in hex.
func (s Signature) String() string { return hex.EncodeToString(s[:]) }

// IsZero reports whether s is the zero signature.
func (s Signature) IsZero() bool { return s == Signature{} }

// namespace scopes signature versions.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/syssam/csmap/signature"))

// Version returns a stable name-based UUID for s.
func (s Signature) Version() uuid.UUID { return uuid.NewSHA1(namespace, s[:]) }

// Parse parses a hex signature.
func Parse(s string) (Signature, error) {
	var sig Signature
	b, err := hex.DecodeString(s)
	if err != nil {
		return sig, err
	}
	if len(b) != len(sig) {
		return sig, hex.InvalidByteError(0)
	}
	copy(sig[:], b)
	return sig, nil
}

// Compute walks cm and returns its fingerprint. Equal mappings built
// independently have equal signatures.
func Compute(cm *mapping.ContainerMapping) (Signature, error) {
	h := xxh3.New()
	e := &encoder{
		enc: msgpack.NewEncoder(h),
		ids: make(map[any]int),
	}
	e.enc.SetSortMapKeys(true)
	e.Walker = mapping.NewWalker(e)
	e.VisitContainerMapping(cm)
	if e.err != nil {
		return Signature{}, e.err
	}
	return Signature(h.Sum128().Bytes()), nil
}

// MustCompute is like Compute but panics on error.
func MustCompute(cm *mapping.ContainerMapping) Signature {
	sig, err := Compute(cm)
	if err != nil {
		panic(err)
	}
	return sig
}
