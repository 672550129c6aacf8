package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL bounds both the token and the cookie carrying it.
const TokenTTL = 7 * 24 * time.Hour

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID uint64
	Role   Role
	Email  string
}

type JWT struct {
	secret []byte
	now    func() time.Time
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), now: time.Now}
}

func (j *JWT) Sign(u *User) (string, error) {
	now := j.now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(u.ID, 10),
		"role":  string(u.Role),
		"email": u.Email,
		"jti":   fmt.Sprintf("%d-%s", u.ID, uuid.NewString()),
		"iat":   now.Unix(),
		"exp":   now.Add(TokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(j.secret)
}

func (j *JWT) Verify(tokenStr string) (Identity, error) {
	t, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil || !t.Valid {
		return Identity{}, errors.New("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, errors.New("missing sub")
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return Identity{}, errors.New("invalid sub")
	}

	role, _ := claims["role"].(string)
	email, _ := claims["email"].(string)
	return Identity{UserID: id, Role: Role(role), Email: email}, nil
}
