package subs

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// keyEncMode is the CBOR encoder mode for canonical keys.
// Configured for deterministic encoding so structurally-equal requests
// always produce identical bytes.
var keyEncMode cbor.EncMode

func init() {
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical, // Deterministic key ordering
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsEmpty,
		Time:          cbor.TimeUnix,
	}

	var err error
	keyEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create key CBOR encoder mode: %v", err))
	}
}

// Key is the canonical identity of a Request: the deterministic CBOR
// encoding of [name, args]. Distinct requests yield distinct keys.
type Key string

// String returns the key as hex, suitable for logs and diagnostics.
func (k Key) String() string {
	return hex.EncodeToString([]byte(k))
}

// Key computes the canonical key for the request. It fails with
// ErrInvalidRequest if an argument cannot be encoded (channels, funcs).
func (r Request) Key() (Key, error) {
	args := r.Args
	if args == nil {
		args = []any{}
	}

	data, err := keyEncMode.Marshal([2]any{r.Name, args})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return Key(data), nil
}
