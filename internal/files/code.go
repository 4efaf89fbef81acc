package files

import (
	"crypto/rand"
	"math/big"
)

const (
	// CodeAlphabet is the character set access codes are drawn from
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the fixed length of every access code
	CodeLength = 8
)

// Generator produces candidate access codes
type Generator interface {
	Generate() string
}

// CodeGenerator draws random codes and re-rolls while a candidate is taken.
//
// The liveness check is an optimization only: Registry.Insert is the
// authoritative collision check.
type CodeGenerator struct {
	taken func(code string) bool
}

// NewCodeGenerator creates a generator that skips codes for which taken
// returns true. A nil taken accepts every candidate.
func NewCodeGenerator(taken func(code string) bool) *CodeGenerator {
	return &CodeGenerator{taken: taken}
}

// Generate returns a code that was not live at the time of the check
func (g *CodeGenerator) Generate() string {
	for {
		code := randomCode()
		if g.taken == nil || !g.taken(code) {
			return code
		}
	}
}

func randomCode() string {
	alphabetLen := big.NewInt(int64(len(CodeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic("files: crypto/rand failed: " + err.Error())
		}
		buf[i] = CodeAlphabet[n.Int64()]
	}
	return string(buf)
}

// ValidCode reports whether s has the shape of an access code
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
