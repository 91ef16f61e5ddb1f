package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/scope"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	issuer       = "bizops"
	chatAudience = "chat"
)

type Claims struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the caller the claims describe.
func (c *Claims) Principal() scope.Principal {
	return scope.Principal{
		UserID: c.UserID,
		OrgID:  c.OrganizationID,
		Role:   models.Role(c.Role),
	}
}

type JWTService struct {
	secret     []byte
	expiry     time.Duration
	chatIssuer string
	chatTTL    time.Duration
}

func NewJWTService(secret string, expiry time.Duration) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		expiry:     expiry,
		chatIssuer: "bizops-chat",
		chatTTL:    time.Hour,
	}
}

// WithChat sets the issuer and lifetime of chat tokens.
func (s *JWTService) WithChat(issuer string, ttl time.Duration) *JWTService {
	if issuer != "" {
		s.chatIssuer = issuer
	}
	if ttl > 0 {
		s.chatTTL = ttl
	}
	return s
}

func (s *JWTService) GenerateToken(userID, orgID uuid.UUID, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:         userID,
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// TokenFor issues a session token for u with its organization resolved.
func (s *JWTService) TokenFor(u *models.User) (string, error) {
	return s.GenerateToken(u.ID, scope.ResolveOrgID(u), u.Email, string(u.Role))
}

// ChatToken is handed to the chat service to identify a user.
type ChatToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *JWTService) GenerateChatToken(u *models.User) (*ChatToken, error) {
	now := time.Now()
	expires := now.Add(s.chatTTL)
	claims := Claims{
		UserID:         u.ID,
		OrganizationID: scope.ResolveOrgID(u),
		Email:          u.Email,
		Role:           string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.chatIssuer,
			Subject:   u.ID.String(),
			Audience:  jwt.ClaimStrings{chatAudience},
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &ChatToken{Token: signed, ExpiresAt: expires}, nil
}

// ValidateToken accepts session tokens only; chat tokens are rejected.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if len(claims.Audience) > 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) ValidateChatToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, jwt.WithAudience(chatAudience))
}

func (s *JWTService) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
