package enablebanking

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "enablebanking.com"
	tokenAudience = "api.enablebanking.com"
	tokenLifetime = time.Hour
)

// Signer mints the short-lived RS256 bearer tokens the API expects.
// A new token is signed for every request.
type Signer struct {
	key   *rsa.PrivateKey
	now   func() time.Time
	appID string
}

// NewSigner parses a PEM encoded RSA key (PKCS#1 or PKCS#8).
func NewSigner(appID string, privateKeyPEM []byte) (*Signer, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, fmt.Errorf("%w: enable banking application id is empty", common.ErrConfiguration)
	}
	if len(privateKeyPEM) == 0 {
		return nil, fmt.Errorf("%w: enable banking private key is empty", common.ErrConfiguration)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse private key: %w", common.ErrConfiguration, err)
	}

	return &Signer{key: key, appID: appID, now: time.Now}, nil
}

// Token signs a fresh bearer token valid for one hour.
func (s *Signer) Token() (string, error) {
	iat := s.now().Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"iat": iat,
		"exp": iat + int64(tokenLifetime/time.Second),
	})
	token.Header["kid"] = s.appID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
