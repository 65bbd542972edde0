// Package idgen generates record identifiers and synthetic transaction hashes.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// New returns a random (version 4) UUID string.
func New() string {
	return uuid.NewString()
}

// Hex generates a random hex string of the given byte length.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// TxHash builds a display hash for an analyzed transaction that has not been
// broadcast yet: "0x" + hex(unix millis) + 8 random hex chars.
func TxHash(at time.Time) string {
	return "0x" + strconv.FormatInt(at.UnixMilli(), 16) + Hex(4)
}
