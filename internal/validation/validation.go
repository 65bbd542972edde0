// Package validation provides the input gate that runs before scoring, plus
// request validation helpers for the WalletGuard API.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for free-form string fields
const MaxStringLength = 10000

// NoOpCallData is the call-data value of a plain transfer.
const NoOpCallData = "0x"

var ErrInvalidAddress = errors.New("invalid address")

var (
	// ethAddressRegex validates Ethereum addresses
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	// callDataRegex accepts "0x" followed by any number of hex digits
	callDataRegex = regexp.MustCompile(`^0x[0-9a-fA-F]*$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidEthAddress checks if a string is a valid Ethereum address
func IsValidEthAddress(addr string) bool {
	return ethAddressRegex.MatchString(addr)
}

// AddressError reports a malformed address field. It matches
// ErrInvalidAddress under errors.Is.
type AddressError struct {
	Field string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("Invalid '%s' address format", e.Field)
}

func (e *AddressError) Unwrap() error { return ErrInvalidAddress }

// CheckAddress returns an *AddressError when addr is not 0x followed by
// exactly 40 hex digits.
func CheckAddress(field, addr string) error {
	if !IsValidEthAddress(addr) {
		return &AddressError{Field: field}
	}
	return nil
}

// SanitizeCallData normalizes call data. Absent or malformed values collapse
// to NoOpCallData; this never fails.
func SanitizeCallData(data string) string {
	if data == "" || data == NoOpCallData || !callDataRegex.MatchString(data) {
		return NoOpCallData
	}
	return data
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errs ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// Present checks that an optional-typed field was sent at all. Empty values pass.
func Present(field string, value *string) func() *ValidationError {
	return func() *ValidationError {
		if value == nil {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// NonNegative checks an optional numeric field.
func NonNegative(field string, value *int64) func() *ValidationError {
	return func() *ValidationError {
		if value != nil && *value < 0 {
			return &ValidationError{Field: field, Message: "must not be negative"}
		}
		return nil
	}
}
