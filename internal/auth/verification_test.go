package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkParts struct {
	id, hash, expires, signature string
}

func parseLink(t *testing.T, link string) linkParts {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u.Path, verifyPrefix))
	segs := strings.Split(strings.TrimPrefix(u.Path, verifyPrefix), "/")
	require.Len(t, segs, 2)
	return linkParts{segs[0], segs[1], u.Query().Get("expires"), u.Query().Get("signature")}
}

func TestVerifier(t *testing.T) {
	v := NewVerifier("secret", "https://app.test/", time.Hour)
	user := &models.User{Base: models.Base{ID: uuid.New()}, Email: "A@x.com"}

	link := v.Link(user)
	assert.True(t, strings.HasPrefix(link, "https://app.test/api/v1/email/verify/"+user.ID.String()+"/"))
	parts := parseLink(t, link)

	t.Run("valid link", func(t *testing.T) {
		assert.NoError(t, v.Check(user.ID, parts.hash, parts.expires, parts.signature))
	})

	t.Run("tampered hash", func(t *testing.T) {
		assert.ErrorIs(t, v.Check(user.ID, "deadbeef", parts.expires, parts.signature), ErrInvalidSignature)
	})

	t.Run("other user", func(t *testing.T) {
		assert.ErrorIs(t, v.Check(uuid.New(), parts.hash, parts.expires, parts.signature), ErrInvalidSignature)
	})

	t.Run("extended expiry", func(t *testing.T) {
		assert.ErrorIs(t, v.Check(user.ID, parts.hash, parts.expires+"0", parts.signature), ErrInvalidSignature)
	})

	t.Run("malformed expiry", func(t *testing.T) {
		assert.ErrorIs(t, v.Check(user.ID, parts.hash, "soon", parts.signature), ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { v.now = time.Now }()
		assert.ErrorIs(t, v.Check(user.ID, parts.hash, parts.expires, parts.signature), ErrLinkExpired)
	})
}
