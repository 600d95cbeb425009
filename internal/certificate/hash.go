package certificate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parcels/internal/domain"

	"github.com/gowebpki/jcs"
)

var ErrEmptySecret = errors.New("certificate: empty hash secret")

// Facts are the claim fields bound by the content hash.
type Facts struct {
	TS        time.Time
	OwnerID   domain.OwnerID
	Amount    int64
	CreatedAt time.Time
}

// FactsOf extracts the hashed fields from a stored claim.
func FactsOf(c *domain.Claim) Facts {
	return Facts{TS: c.TS, OwnerID: c.OwnerID, Amount: c.Price, CreatedAt: c.CreatedAt}
}

type hashedFacts struct {
	TS        string `json:"ts"`
	OwnerID   string `json:"owner_id"`
	Amount    int64  `json:"amount"`
	CreatedAt string `json:"created_at"`
}

// Hasher computes HMAC-SHA256 over the RFC 8785 canonical JSON of Facts.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Hasher{secret: []byte(secret)}, nil
}

// Sum returns the lowercase hex digest. Timestamps are rendered in UTC at
// microsecond precision so a value read back from PostgreSQL hashes the same.
func (h *Hasher) Sum(f Facts) (string, error) {
	raw, err := json.Marshal(hashedFacts{
		TS:        f.TS.UTC().Format(time.RFC3339),
		OwnerID:   f.OwnerID.String(),
		Amount:    f.Amount,
		CreatedAt: f.CreatedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("marshal facts: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize facts: %w", err)
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the digest for f and compares it in constant time.
func (h *Hasher) Verify(f Facts, digest string) bool {
	want, err := h.Sum(f)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(digest))
}
