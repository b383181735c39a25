package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues HS256 tokens the Verifier accepts. The service itself never
// signs; it is used by sessionctl and tests.
type Signer struct {
	secret []byte
	Issuer string
	now    func() time.Time
}

func NewSigner(secret, issuer string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	return &Signer{secret: []byte(secret), Issuer: issuer, now: time.Now}, nil
}

// Sign issues a token for subject sub valid for ttl, merged with extra claims.
func (s *Signer) Sign(sub string, ttl time.Duration, claims map[string]any) (string, error) {
	now := s.now()
	m := jwt.MapClaims{}
	for k, v := range claims {
		m[k] = v
	}
	m["sub"] = sub
	m["iat"] = now.Unix()
	m["exp"] = now.Add(ttl).Unix()
	if s.Issuer != "" {
		m["iss"] = s.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, m).SignedString(s.secret)
}
