package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/theapemachine/scenes/pkg/errors"
)

const (
	PolicyOpen   = ""
	PolicyBearer = "bearer"
	scopePrefix  = "scope:"
)

/*
Service signs and checks the HS256 tokens that guard protected server
exposures.
*/
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey []byte, issuer string) *Service {
	return &Service{signingKey: signingKey, issuer: issuer}
}

func (s *Service) getSigningKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	return s.signingKey, nil
}

/*
Authorize checks an Authorization header against a policy. The empty
policy lets everything through, "bearer" needs any valid token and
"scope:<name>" needs a token whose scope claim lists the name.
*/
func (s *Service) Authorize(header, policy string) error {
	if policy == PolicyOpen {
		return nil
	}

	if policy != PolicyBearer && !strings.HasPrefix(policy, scopePrefix) {
		return errors.ErrUnauthorized.WithMessagef("unknown policy %q", policy)
	}

	tokenStr, ok := strings.CutPrefix(header, "Bearer ")

	if !ok || tokenStr == "" {
		return errors.ErrUnauthorized.WithMessagef("missing bearer token")
	}

	claims := jwt.MapClaims{}

	if _, err := jwt.ParseWithClaims(tokenStr, claims, s.getSigningKey); err != nil {
		return errors.ErrUnauthorized.WithMessagef("invalid token: %v", err)
	}

	required, scoped := strings.CutPrefix(policy, scopePrefix)

	if !scoped {
		return nil
	}

	scope, _ := claims["scope"].(string)

	if !slices.Contains(strings.Fields(scope), required) {
		return errors.ErrUnauthorized.WithMessagef("token lacks scope %s", required)
	}

	return nil
}

/*
GenerateToken signs a token for subject carrying the scopes. A zero ttl
gives a token that does not expire.
*/
func (s *Service) GenerateToken(subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"iat":   now.Unix(),
		"scope": strings.Join(scopes, " "),
	}

	if s.issuer != "" {
		claims["iss"] = s.issuer
	}

	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)

	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenStr, nil
}
