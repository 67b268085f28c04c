package jwttoken

import (
	"strings"

	authmw "evidentia/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims maps token claims to the caller facts the kernel uses.
// Roles are matched case-insensitively against policy role names.
func ToMiddlewareClaims(claims *Claims) *authmw.JWTClaims {
	return &authmw.JWTClaims{
		UserID:   strings.TrimSpace(claims.UserID),
		TenantID: strings.TrimSpace(claims.TenantID),
		Role:     strings.ToUpper(strings.TrimSpace(claims.Role)),
	}
}

// JWTServiceAdapter exposes JWTService through the middleware's validator port.
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
