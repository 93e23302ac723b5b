package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents JWT claims used by this service.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Editor converts validated claims into the request identity.
func (c Claims) Editor() Editor {
	role, _ := NormalizeRole(c.Role)
	return Editor{Subject: c.Subject, Name: c.Name, Role: role, TokenID: c.ID}
}

// ParseJWT validates a JWT and returns claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("auth: missing subject")
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, errors.New("auth: invalid role")
	}
	return claims, nil
}

// IssueJWT signs an HS256 token for editor. A non-positive ttl means one hour.
func IssueJWT(secret []byte, editor Editor, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	if editor.Subject == "" {
		return "", errors.New("auth: empty subject")
	}
	role, ok := NormalizeRole(string(editor.Role))
	if !ok {
		return "", errors.New("auth: invalid role")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if editor.TokenID == "" {
		editor.TokenID = uuid.NewString()
	}
	now := time.Now()
	claims := Claims{
		Role: string(role),
		Name: editor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        editor.TokenID,
			Subject:   editor.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
