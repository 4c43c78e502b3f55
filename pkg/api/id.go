package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	resolutionIDPrefix = "res_"
	attemptIDPrefix    = "att_"
)

var (
	resolutionIDPattern = regexp.MustCompile(`^res_[a-zA-Z0-9]{24}$`)
	attemptIDPattern    = regexp.MustCompile(`^att_[a-zA-Z0-9]{24}$`)
)

// NewResolutionID generates an ID for one move resolution ("res_" + 24 random
// alphanumeric characters).
func NewResolutionID() string {
	return resolutionIDPrefix + randomAlphanumeric(idLength)
}

// NewAttemptID generates an ID for one journaled attempt ("att_" + 24 random
// alphanumeric characters).
func NewAttemptID() string {
	return attemptIDPrefix + randomAlphanumeric(idLength)
}

// ValidateResolutionID checks whether id is a well-formed resolution ID.
func ValidateResolutionID(id string) bool {
	return resolutionIDPattern.MatchString(id)
}

// ValidateAttemptID checks whether id is a well-formed attempt ID.
func ValidateAttemptID(id string) bool {
	return attemptIDPattern.MatchString(id)
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
