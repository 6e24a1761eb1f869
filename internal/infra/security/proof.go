package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ProofIssuer mints signed verification-proof tokens handed to clients after
// a successful confirmation.
type ProofIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewProofIssuer constructs a ProofIssuer signing with the provided HMAC secret.
func NewProofIssuer(secret, issuer string, ttl time.Duration) (*ProofIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("proof secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &ProofIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (p *ProofIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		p.now = clock
	}
}

// IssueVerificationProof returns a signed JWT carrying the verified identity
// and the verification handle that produced it.
func (p *ProofIssuer) IssueVerificationProof(userID, verificationID string, newUser bool) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := p.now().UTC()
	claims := jwt.MapClaims{
		"sub":             userID,
		"iss":             p.issuer,
		"iat":             now.Unix(),
		"exp":             now.Add(p.ttl).Unix(),
		"phone_verified":  true,
		"verification_id": verificationID,
		"new_user":        newUser,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification proof: %w", err)
	}

	return signed, nil
}
