package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewQRHash returns the opaque unique identifier encoded into a report's QR
// code. Image rendering happens client-side; the backend only owns the hash.
func NewQRHash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", uuid.NewString(), time.Now().UnixNano())))
	return hex.EncodeToString(sum[:])
}
