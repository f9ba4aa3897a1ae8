package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSecretSource struct {
	secret string
	err    error
}

func (s *staticSecretSource) TOTPSecret(ctx context.Context, userID string) (string, error) {
	return s.secret, s.err
}

func generateTestSecret(t *testing.T) string {
	t.Helper()
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "ResQLink",
		AccountName: "responder@example.com",
	})
	require.NoError(t, err)
	return key.Secret()
}

func TestTOTPVerifier_ValidCode(t *testing.T) {
	clock := newFakeClock()
	secret := generateTestSecret(t)
	v := NewTOTPVerifier(&staticSecretSource{secret: secret}, clock)

	code, err := totp.GenerateCodeCustom(secret, clock.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), "user_1", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTPVerifier_WrongCode(t *testing.T) {
	clock := newFakeClock()
	v := NewTOTPVerifier(&staticSecretSource{secret: generateTestSecret(t)}, clock)

	ok, err := v.Verify(context.Background(), "user_1", "000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTOTPVerifier_SecretSourceError(t *testing.T) {
	clock := newFakeClock()
	v := NewTOTPVerifier(&staticSecretSource{err: errors.New("user has no enrolled device")}, clock)

	ok, err := v.Verify(context.Background(), "user_1", "123456")
	assert.Error(t, err)
	assert.False(t, ok)
}
