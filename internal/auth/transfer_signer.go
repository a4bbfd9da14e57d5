package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTransferTokenMaxAge is the validity window of an ownership
// transfer token, measured from its signing timestamp.
const DefaultTransferTokenMaxAge = 24 * time.Hour

var (
	// ErrTransferTokenInvalid covers malformed tokens, bad signatures and
	// tokens signed for a different user than the presenter.
	ErrTransferTokenInvalid = errors.New("transfer token: invalid")
	// ErrTransferTokenExpired indicates the signing timestamp fell outside
	// the validity window.
	ErrTransferTokenExpired = errors.New("transfer token: expired")
)

// TransferSignerConfig bundles the parameters of a TransferSigner.
type TransferSignerConfig struct {
	Secret string
	MaxAge time.Duration
	Clock  func() time.Time
}

// TransferSigner mints and verifies the timestamped capability tokens used
// by the project ownership transfer workflow. A token binds one candidate
// user id; it only verifies when presented by that exact user.
type TransferSigner struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTransferSigner constructs a TransferSigner.
func NewTransferSigner(cfg TransferSignerConfig) (*TransferSigner, error) {
	if cfg.Secret == "" {
		return nil, errors.New("transfer signer: secret must be provided")
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultTransferTokenMaxAge
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TransferSigner{
		secret: []byte(cfg.Secret),
		maxAge: maxAge,
		now:    now,
	}, nil
}

// Sign produces a token over the candidate user id, timestamped at creation.
func (s *TransferSigner) Sign(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("transfer signer: user id is required")
	}

	claims := &jwt.RegisteredClaims{
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(s.now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("transfer signer: sign token: %w", err)
	}

	return signed, nil
}

// Verify checks signature, age and subject of the supplied token. The age
// check runs before the subject check so an expired token reports expiry
// regardless of who presents it.
func (s *TransferSigner) Verify(tokenString, userID string) error {
	if tokenString == "" {
		return ErrTransferTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferTokenInvalid, err)
	}

	if claims.IssuedAt == nil {
		return ErrTransferTokenInvalid
	}
	if s.now().Sub(claims.IssuedAt.Time) > s.maxAge {
		return ErrTransferTokenExpired
	}

	if claims.Subject == "" || claims.Subject != userID {
		return ErrTransferTokenInvalid
	}

	return nil
}

// IssuedAt returns the signing timestamp of a token without checking its
// subject. Malformed or foreign-signed tokens report ErrTransferTokenInvalid.
func (s *TransferSigner) IssuedAt(tokenString string) (time.Time, error) {
	if tokenString == "" {
		return time.Time{}, ErrTransferTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrTransferTokenInvalid, err)
	}
	if claims.IssuedAt == nil {
		return time.Time{}, ErrTransferTokenInvalid
	}

	return claims.IssuedAt.Time, nil
}

// MaxAge exposes the configured validity window.
func (s *TransferSigner) MaxAge() time.Duration {
	return s.maxAge
}
