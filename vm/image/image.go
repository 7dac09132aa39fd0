// Package image reads and writes compiled clasp programs.
//
// An image is the 4-byte magic "CLSP", a format version byte, and the
// program encoded as canonical CBOR. Canonical encoding makes the bytes of
// an image a function of the program alone.
package image

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/chazu/clasp/vm"
	"github.com/fxamacker/cbor/v2"
)

// Version is the image format written by Marshal.
const Version byte = 1

// Extension is the conventional file suffix for images.
const Extension = ".clbc"

var magic = []byte("CLSP")

var (
	// ErrNotImage is returned when data does not start with the image magic.
	ErrNotImage = errors.New("image: not a clasp image")
	// ErrVersion is returned for images written by an unknown format version.
	ErrVersion = errors.New("image: unsupported version")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes p.
func Marshal(p *vm.Program) ([]byte, error) {
	body, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("image: marshal program: %w", err)
	}
	out := make([]byte, 0, len(magic)+1+len(body))
	out = append(out, magic...)
	out = append(out, Version)
	return append(out, body...), nil
}

// Unmarshal deserializes an image produced by Marshal.
func Unmarshal(data []byte) (*vm.Program, error) {
	if !IsImage(data) {
		return nil, ErrNotImage
	}
	if v := data[len(magic)]; v != Version {
		return nil, fmt.Errorf("%w %d", ErrVersion, v)
	}
	var p vm.Program
	if err := cbor.Unmarshal(data[len(magic)+1:], &p); err != nil {
		return nil, fmt.Errorf("image: unmarshal program: %w", err)
	}
	if p.Entry < 0 || (len(p.Code) > 0 && int(p.Entry) >= len(p.Code)) {
		return nil, fmt.Errorf("image: entry %d outside %d instructions", p.Entry, len(p.Code))
	}
	return &p, nil
}

// IsImage reports whether data starts with the image magic.
func IsImage(data []byte) bool {
	return len(data) > len(magic) && bytes.Equal(data[:len(magic)], magic)
}

// WriteFile writes p to path.
func WriteFile(path string, p *vm.Program) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads the image at path.
func ReadFile(path string) (*vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	p, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Hash returns the cache key for source: the hex sha256 of the format
// version followed by the source text.
func Hash(source []byte) string {
	h := sha256.New()
	h.Write([]byte{Version})
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}
