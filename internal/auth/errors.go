package auth

import "errors"

var (
	ErrUnauthorized     = errors.New("auth: unauthorized")
	ErrForbidden        = errors.New("auth: forbidden")
	ErrInvalidToken     = errors.New("auth: invalid token")
	ErrMissingSignature = errors.New("auth: missing webhook signature")
	ErrInvalidSignature = errors.New("auth: invalid webhook signature")
	ErrSignatureExpired = errors.New("auth: webhook signature expired")
)
