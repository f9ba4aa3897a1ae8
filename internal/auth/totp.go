package auth

import (
	"context"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/resqlink/backend/internal/store"
)

// TOTPSecretSource resolves a user's TOTP secret. Enrollment and secret
// storage belong to the external MFA collaborator; this core only needs
// to read.
type TOTPSecretSource interface {
	TOTPSecret(ctx context.Context, userID string) (string, error)
}

// TOTPVerifier is the MFAVerifier used for session elevation: a plain
// pass/fail check of a 6-digit TOTP code.
type TOTPVerifier struct {
	secrets TOTPSecretSource
	clock   store.Clock
}

// NewTOTPVerifier creates a TOTPVerifier.
func NewTOTPVerifier(secrets TOTPSecretSource, clock store.Clock) *TOTPVerifier {
	return &TOTPVerifier{secrets: secrets, clock: clock}
}

// Verify validates code against the user's secret. Allows ±1 time step
// for clock drift.
func (v *TOTPVerifier) Verify(ctx context.Context, userID, code string) (bool, error) {
	secret, err := v.secrets.TOTPSecret(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve totp secret: %w", err)
	}

	valid, err := totp.ValidateCustom(code, secret, v.clock.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate totp code: %w", err)
	}
	return valid, nil
}

// Ensure TOTPVerifier implements MFAVerifier
var _ MFAVerifier = (*TOTPVerifier)(nil)
