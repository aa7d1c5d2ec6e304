// Package apperr holds the error codes shared by services and handlers and maps
// them onto HTTP responses.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/samber/oops"
	"go.uber.org/zap"
)

// Error codes attached to oops errors.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeWeakPassword       = "PASSWORD_TOO_WEAK"
	CodePasswordReused     = "PASSWORD_REUSED"
	CodeOTPInvalid         = "OTP_INVALID"
	CodeOTPExpired         = "OTP_EXPIRED"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodePhoneTaken         = "PHONE_TAKEN"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeConflict           = "CONFLICT"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenMissing       = "TOKEN_MISSING"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeForbidden          = "FORBIDDEN"
	CodeDeliveryFailed     = "DELIVERY_FAILED"
	CodeInternal           = "INTERNAL"
)

var statusByCode = map[string]int{
	CodeValidation:         http.StatusBadRequest,
	CodeWeakPassword:       http.StatusBadRequest,
	CodePasswordReused:     http.StatusBadRequest,
	CodeOTPInvalid:         http.StatusBadRequest,
	CodeOTPExpired:         http.StatusBadRequest,
	CodeEmailTaken:         http.StatusConflict,
	CodePhoneTaken:         http.StatusConflict,
	CodeUsernameTaken:      http.StatusConflict,
	CodeConflict:           http.StatusConflict,
	CodeUserNotFound:       http.StatusNotFound,
	CodeInvalidCredentials: http.StatusUnauthorized,
	CodeTokenMissing:       http.StatusUnauthorized,
	CodeTokenInvalid:       http.StatusForbidden,
	CodeForbidden:          http.StatusForbidden,
	CodeDeliveryFailed:     http.StatusInternalServerError,
	CodeInternal:           http.StatusInternalServerError,
}

// Messages returned instead of the underlying cause for server-side failures.
const (
	MessageInternal = "Internal server error"
	MessageDelivery = "Failed to send OTP"
)

// Code returns the oops code carried by err, or "" if there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}

// Status maps err onto an HTTP status code. Errors without a known code are 500.
func Status(err error) int {
	if status, ok := statusByCode[Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Context returns the structured context attached to err.
func Context(err error) map[string]any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

// Message returns the text that may be shown to a client. Causes of 5xx errors
// are never exposed.
func Message(err error) string {
	switch Code(err) {
	case CodeDeliveryFailed:
		return MessageDelivery
	case "", CodeInternal:
		return MessageInternal
	}
	return err.Error()
}

// Log writes err with its code and context fields.
func Log(logger *zap.Logger, msg string, err error) {
	if logger == nil {
		logger = zap.L()
	}
	fields := []zap.Field{zap.Error(err)}
	if code := Code(err); code != "" {
		fields = append(fields, zap.String("code", code))
	}
	if ctx := Context(err); len(ctx) > 0 {
		fields = append(fields, zap.Any("context", ctx))
	}
	if Status(err) >= http.StatusInternalServerError {
		logger.Error(msg, fields...)
		return
	}
	logger.Warn(msg, fields...)
}
