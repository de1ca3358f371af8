package utils

import (
	"strings"

	"github.com/google/uuid"
)

const IINLength = 12

// IsValidIIN: ИИН состоит ровно из 12 цифр.
func IsValidIIN(iin string) bool {
	if len(iin) != IINLength {
		return false
	}
	for _, r := range iin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NewPseudoIIN returns a 12-char placeholder identity for users who register
// by email. The "E" prefix keeps it disjoint from real (all-digit) IINs.
func NewPseudoIIN() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "E" + hex[:IINLength-1]
}

func IsPseudoIIN(iin string) bool {
	if len(iin) != IINLength || iin[0] != 'E' {
		return false
	}
	for _, r := range iin[1:] {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
