// Package hashing implements the content/identifier hashing, chunking,
// summarization, and token-budget packing that sit between a connector
// adapter's raw fetch and pkg/store's batched upsert.
package hashing

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// ContentHash is the unique-across-the-system hash of a document's
// canonical text, used by pkg/store to detect unchanged and duplicate
// content. Length-prefixing each field before hashing avoids the
// concatenation ambiguity a naive "a"+"bc" vs "ab"+"c" join would create.
func ContentHash(searchSpaceID int64, canonicalText string) string {
	return lengthPrefixedHash(int64ToBytes(searchSpaceID), []byte(canonicalText))
}

// IdentifierHash is the unique-across-the-system hash identifying a
// document's source location, independent of its content — this is what
// changes-in-place updates key off of.
func IdentifierHash(connectorType, sourceID string, searchSpaceID int64) string {
	return lengthPrefixedHash(int64ToBytes(searchSpaceID), []byte(connectorType), []byte(sourceID))
}

func lengthPrefixedHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func int64ToBytes(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}
