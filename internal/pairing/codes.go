// ABOUTME: Pairing code generation using a confusion-resistant alphabet
// ABOUTME: Codes look like CR-XXXX-XXXX and come from crypto/rand

package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet omits visually ambiguous characters (0/O, 1/I/L) so codes
// survive being read aloud or retyped from a screen.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// codePrefix brands pairing codes so users recognize them in transcripts.
const codePrefix = "CR"

const codeGroupLen = 4

// NewCode generates a random pairing code of the form CR-XXXX-XXXX.
func NewCode() (string, error) {
	chars := make([]byte, codeGroupLen*2)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range chars {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating pairing code: %w", err)
		}
		chars[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", codePrefix, chars[:codeGroupLen], chars[codeGroupLen:]), nil
}

// NormalizeCode canonicalizes user input: uppercase, trimmed, dashes kept.
// Pairing codes are case-insensitive on entry but stored uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
