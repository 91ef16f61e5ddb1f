package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/pkg/crypto"
)

var (
	ErrInvalidSignature = errors.New("invalid verification link")
	ErrLinkExpired      = errors.New("verification link has expired")
)

const verifyPrefix = "/api/v1/email/verify/"

// Verifier issues and checks signed email verification links.
type Verifier struct {
	signer *crypto.Signer
	appURL string
	ttl    time.Duration
	now    func() time.Time
}

func NewVerifier(secret, appURL string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Verifier{
		signer: crypto.NewSigner(secret),
		appURL: strings.TrimRight(appURL, "/"),
		ttl:    ttl,
		now:    time.Now,
	}
}

func signedMessage(userID, hash string, expires int64) string {
	return fmt.Sprintf("%s%s/%s?expires=%d", verifyPrefix, userID, hash, expires)
}

// Link returns the absolute verification URL for u.
func (v *Verifier) Link(u *models.User) string {
	expires := v.now().Add(v.ttl).Unix()
	hash := crypto.EmailHash(u.Email)
	msg := signedMessage(u.ID.String(), hash, expires)

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", v.signer.Sign(msg))
	return v.appURL + verifyPrefix + u.ID.String() + "/" + hash + "?" + q.Encode()
}

// Check validates the signature and expiry of a link's parts.
func (v *Verifier) Check(userID uuid.UUID, hash, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if !v.signer.Verify(signedMessage(userID.String(), hash, exp), signature) {
		return ErrInvalidSignature
	}
	if v.now().Unix() > exp {
		return ErrLinkExpired
	}
	return nil
}
