package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signChallenge(secret, challenge string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(challenge))
	return hex.EncodeToString(h.Sum(nil))
}

func TestGenerateChallenge(t *testing.T) {
	auth := NewAuthHandler("secret")

	a, err := auth.GenerateChallenge()
	require.NoError(t, err)
	b, err := auth.GenerateChallenge()
	require.NoError(t, err)

	assert.Len(t, a, 64) // 32 bytes hex encoded
	assert.NotEqual(t, a, b)
}

func TestVerifySignature(t *testing.T) {
	auth := NewAuthHandler("secret")
	challenge, err := auth.GenerateChallenge()
	require.NoError(t, err)

	assert.True(t, auth.VerifySignature(challenge, signChallenge("secret", challenge)))
	assert.False(t, auth.VerifySignature(challenge, signChallenge("wrong", challenge)))
	assert.False(t, auth.VerifySignature(challenge, "not-hex-garbage"))
}

func TestHandleAuthResponse_Success(t *testing.T) {
	auth := NewAuthHandler("secret")
	client := &Client{ID: "c1", Challenge: "challenge-value", State: StateAuthenticating}

	result := auth.HandleAuthResponse(client, signChallenge("secret", "challenge-value"))

	assert.True(t, result.Success)
	assert.Equal(t, "auth.success", result.Event)
	assert.True(t, client.Authenticated)
	assert.Equal(t, StateAuthenticated, client.State)
	assert.Empty(t, client.Challenge)
}

func TestHandleAuthResponse_InvalidSignature(t *testing.T) {
	auth := NewAuthHandler("secret")
	client := &Client{ID: "c1", Challenge: "challenge-value"}

	result := auth.HandleAuthResponse(client, "bad-signature")

	assert.False(t, result.Success)
	assert.Equal(t, "auth.failure", result.Event)
	assert.False(t, client.Authenticated)
	assert.Equal(t, 1, client.AuthAttempts)
}

func TestHandleAuthResponse_TooManyAttempts(t *testing.T) {
	auth := NewAuthHandler("secret")
	client := &Client{ID: "c1", Challenge: "challenge-value"}

	for i := 0; i < 2; i++ {
		auth.HandleAuthResponse(client, "bad-signature")
	}
	result := auth.HandleAuthResponse(client, "bad-signature")

	assert.False(t, result.Success)
	assert.Equal(t, "Too many failed attempts", result.Message)
}

func TestHandleAuthResponse_NoChallenge(t *testing.T) {
	auth := NewAuthHandler("secret")
	client := &Client{ID: "c1"}

	result := auth.HandleAuthResponse(client, "anything")

	assert.False(t, result.Success)
	assert.Equal(t, "No challenge found", result.Message)
}
