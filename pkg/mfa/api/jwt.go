package api

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HmacJwtService parses bearer tokens signed with a shared HMAC secret.
type HmacJwtService struct {
	secret []byte
}

func NewHmacJwtService(secret string) *HmacJwtService {
	return &HmacJwtService{secret: []byte(secret)}
}

func (s *HmacJwtService) ParseTokenStr(tokenStr string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return token, nil
}
