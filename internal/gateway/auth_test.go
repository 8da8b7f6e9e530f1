package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSignVerify(t *testing.T) {
	secret := []byte("s3cret")
	value := sign(secret, "0b7a3c2e-session")

	id, err := verify(secret, value)
	require.NoError(t, err)
	assert.Equal(t, "0b7a3c2e-session", id)

	bad := []string{
		"",
		"no-signature",
		".sig",
		"0b7a3c2e-session.",
		"0b7a3c2e-session.!!!",
		"other-session" + value[len("0b7a3c2e-session"):],
	}
	for _, v := range bad {
		_, err := verify(secret, v)
		assert.True(t, errors.Is(err, ErrInvalidCookie), "%q: %v", v, err)
	}

	_, err = verify([]byte("rotated"), value)
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("correct horse")))
	assert.Error(t, bcrypt.CompareHashAndPassword(hash, []byte("battery staple")))
}
