package crypto_test

import (
	"testing"

	"github.com/hugh/bizops/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	hash, err := crypto.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, crypto.CheckPassword("correct horse", hash))
	assert.False(t, crypto.CheckPassword("wrong horse", hash))
	assert.False(t, crypto.CheckPassword("correct horse", "not-a-hash"))
}

func TestSigner(t *testing.T) {
	s := crypto.NewSigner("secret")

	sig := s.Sign("/email/verify/1/abc?expires=10")
	assert.Len(t, sig, 64)
	assert.True(t, s.Verify("/email/verify/1/abc?expires=10", sig))

	t.Run("tampered message", func(t *testing.T) {
		assert.False(t, s.Verify("/email/verify/2/abc?expires=10", sig))
	})

	t.Run("other key", func(t *testing.T) {
		assert.False(t, crypto.NewSigner("other").Verify("/email/verify/1/abc?expires=10", sig))
	})
}

func TestEmailHash(t *testing.T) {
	assert.Equal(t, crypto.EmailHash("a@x.com"), crypto.EmailHash(" A@X.com "))
	assert.NotEqual(t, crypto.EmailHash("a@x.com"), crypto.EmailHash("b@x.com"))
	assert.Len(t, crypto.EmailHash("a@x.com"), 40)
}
