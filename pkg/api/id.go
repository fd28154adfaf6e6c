package api

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	requestIDPrefix = "req_"
	callIDPrefix    = "call_"
)

var callIDPattern = regexp.MustCompile(`^call_[a-zA-Z0-9]{24}$`)

// NewRequestID generates a request ID with the "req_" prefix followed by
// a random UUID.
func NewRequestID() string {
	return requestIDPrefix + uuid.NewString()
}

// ValidateRequestID checks whether id is "req_" followed by a valid UUID.
func ValidateRequestID(id string) bool {
	if len(id) <= len(requestIDPrefix) || id[:len(requestIDPrefix)] != requestIDPrefix {
		return false
	}
	return uuid.Validate(id[len(requestIDPrefix):]) == nil
}

// NewCallID generates a tool call ID with the "call_" prefix followed by
// 24 cryptographically random alphanumeric characters. Used when a
// provider omits call ids (Gemini) or a stream never delivered one.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(idLength)
}

// ValidateCallID checks whether the given string is a generated call ID.
func ValidateCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
