// Package fairness implements the commit-reveal protocol used to prove a
// draw outcome was fixed before it became knowable. Everything here is a
// pure function; callers own persistence and timing of the commit.
package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// GenerateSeed returns 32 cryptographically random bytes, hex encoded.
// Seeds back an unpredictability guarantee toward users, so math/rand is
// not acceptable here.
func GenerateSeed() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("rand.Read -> %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CommitHash returns the hex SHA-256 of serverSeed||publicSeed. Publishing
// it before the outcome is knowable lets participants verify after reveal
// that the server seed was not chosen retroactively.
func CommitHash(serverSeed, publicSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed + publicSeed))
	return hex.EncodeToString(sum[:])
}

// WinnerIndex derives the winning slot from the seed pair and the draw ID:
// the first 4 bytes of SHA-256(serverSeed||publicSeed||drawID) read as a
// big-endian unsigned integer, modulo participantCount. Binding the draw ID
// keeps reused seeds from producing correlated outcomes across draws.
func WinnerIndex(serverSeed, publicSeed, drawID string, participantCount int) (int, error) {
	if participantCount <= 0 {
		return 0, fmt.Errorf("participant count must be positive, got %d", participantCount)
	}
	sum := sha256.Sum256([]byte(serverSeed + publicSeed + drawID))
	n := binary.BigEndian.Uint32(sum[:4])
	return int(n % uint32(participantCount)), nil
}

// Verify recomputes the commit hash from revealed seeds and compares it to
// the published commitment.
func Verify(serverSeed, publicSeed, commitHash string) bool {
	return CommitHash(serverSeed, publicSeed) == commitHash
}
