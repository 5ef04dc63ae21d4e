package executor

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// identAlphabet mirrors the teacher's idgen.base36Alphabet (0-9, a-z);
// container idents don't need the collision-avoidance nonce scheme that
// package built for issue IDs, just a short unique suffix, so the
// encoding itself is the part kept.
const identAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const identSuffixLength = 16

// NewIdent generates a fresh container identity: "warpforge-<suffix>"
// where suffix is a 16-character alphanumeric string (spec.md §4.2),
// derived from a random UUID rather than a content hash since a
// container ident has no content to hash from — it identifies a single
// ephemeral run.
func NewIdent() string {
	return "warpforge-" + encodeBase36(uuid.New(), identSuffixLength)
}

func encodeBase36(id uuid.UUID, length int) string {
	num := new(big.Int).SetBytes(id[:])
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, identAlphabet[mod.Int64()])
	}
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}

	s := string(chars)
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}
	if len(s) > length {
		s = s[len(s)-length:]
	}
	return s
}
