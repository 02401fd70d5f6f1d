package jwttoken

import (
	authmw "campusreg/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) *authmw.JWTClaims {
	sessionID := claims.SessionID
	if sessionID == "" {
		// Tokens without a session id still scope live streams per token.
		sessionID = claims.ID
	}
	return &authmw.JWTClaims{
		UserID:    claims.Subject,
		SessionID: sessionID,
		Roles:     claims.Roles,
	}
}

// JWTServiceAdapter satisfies the auth middleware's JWTValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
