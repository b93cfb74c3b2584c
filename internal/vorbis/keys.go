// Package vorbis implements the Vorbis comment conventions shared by
// OpusTags: field name rules, chapter comments and R128 gain tags.
package vorbis

import (
	"fmt"
	"strings"

	"github.com/simonhull/opusmeta/internal/types"
)

// PictureKey is the reserved field carrying a base64 picture block.
const PictureKey = "METADATA_BLOCK_PICTURE"

// ValidKeyByte reports whether b may appear in a field name: printable
// ASCII 0x20 through 0x7D, excluding '='.
func ValidKeyByte(b byte) bool {
	return b >= 0x20 && b <= 0x7D && b != '='
}

// CanonicalKey validates key and returns it with ASCII letters upper-cased.
func CanonicalKey(key string) (string, error) {
	if key == "" {
		return "", &types.InvalidKeyError{Key: key, Reason: "empty field name"}
	}

	buf := []byte(key)
	for i, b := range buf {
		if !ValidKeyByte(b) {
			return "", &types.InvalidKeyError{Key: key, Reason: fmt.Sprintf("byte %#02x not allowed in field name", b)}
		}
		if 'a' <= b && b <= 'z' {
			buf[i] = b - ('a' - 'A')
		}
	}
	return string(buf), nil
}

// Split parses a raw "KEY=VALUE" comment.
func Split(comment string) (types.Comment, error) {
	key, value, ok := strings.Cut(comment, "=")
	if !ok {
		return types.Comment{}, &types.InvalidKeyError{Key: comment, Reason: "missing '=' separator"}
	}
	key, err := CanonicalKey(key)
	if err != nil {
		return types.Comment{}, err
	}
	return types.Comment{Key: key, Value: value}, nil
}
