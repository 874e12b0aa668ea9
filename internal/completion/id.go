package completion

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// IDLength is the number of hex characters of a generated need id.
const IDLength = 8

// NewID derives a random hex token for a new need id. Uniqueness is not
// checked against the snapshot.
func NewID() string {
	salt := uuid.New()
	sum := sha256.Sum256(salt[:])
	return hex.EncodeToString(sum[:])[:IDLength]
}
