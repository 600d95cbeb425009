// Package codes generates the one-time secrets handed to users and the keyed
// digests stored in their place.
package codes

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// TransferCodeGroups and TransferCodeGroupLen give the XXXX-XXXX-XXXX shape.
const (
	TransferCodeGroups   = 3
	TransferCodeGroupLen = 4
	LoginCodeDigits      = 6
	ResetTokenBytes      = 32
)

// NewTransferCode returns a random Crockford base32 code.
func NewTransferCode() (string, error) {
	n := TransferCodeGroups * TransferCodeGroupLen
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	for i, v := range buf {
		if i > 0 && i%TransferCodeGroupLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(crockford[int(v)%len(crockford)])
	}
	return b.String(), nil
}

// NormalizeTransferCode canonicalizes user input: case, separators and the
// Crockford look-alikes I, L and O.
func NormalizeTransferCode(in string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(in) {
		switch r {
		case '-', ' ', '\t':
			continue
		case 'I', 'L':
			r = '1'
		case 'O':
			r = '0'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NewLoginCode returns a zero-padded decimal code.
func NewLoginCode() (string, error) {
	max := big.NewInt(1_000_000)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", LoginCodeDigits, v.Int64()), nil
}

// NewResetToken returns ResetTokenBytes of randomness, URL-safe encoded.
func NewResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Keyer digests secrets under the server key. Each purpose is domain separated.
type Keyer struct {
	key []byte
}

func NewKeyer(key string) *Keyer { return &Keyer{key: []byte(key)} }

func (k *Keyer) Digest(purpose, secret string) string {
	mac := hmac.New(sha256.New, k.key)
	mac.Write([]byte(purpose))
	mac.Write([]byte{0})
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// TransferCode digests a transfer code after normalization.
func (k *Keyer) TransferCode(code string) string {
	return k.Digest("transfer", NormalizeTransferCode(code))
}
