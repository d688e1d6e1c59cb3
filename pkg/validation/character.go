// Package validation implements the d-character, a-character and
// Joliet c-character alphabet checks used when emitting names.
package validation

import (
	"strings"

	"github.com/voliso/voliso/pkg/consts"
	"github.com/voliso/voliso/pkg/errs"
)

func validateByAllowedChars(s, allowed, setName string) error {
	for i, r := range s {
		if r > 0xFFFF {
			return errs.InvalidInputf("invalid %s-character at index %d: code point 0x%X is outside UCS-2 range", setName, i, r)
		}
		if !strings.ContainsRune(allowed, r) {
			return errs.InvalidInputf("invalid %s-character at index %d: %q is not allowed", setName, i, r)
		}
	}
	return nil
}

// ValidateACharacters checks the a-character alphabet (system/publisher/
// preparer/application identifiers). allowSeparators permits '.' and ';'.
func ValidateACharacters(s string, allowSeparators bool) error {
	allowedChars := consts.A_CHARACTERS
	if allowSeparators {
		allowedChars += consts.ISO9660_SEPARATOR_1 + consts.ISO9660_SEPARATOR_2
	}
	return validateByAllowedChars(s, allowedChars, "A")
}

// ValidateDCharacters checks the d-character alphabet (file/volume
// identifiers). allowSeparators permits '.' and ';'.
func ValidateDCharacters(s string, allowSeparators bool) error {
	allowedChars := consts.D_CHARACTERS
	if allowSeparators {
		allowedChars += consts.ISO9660_SEPARATOR_1 + consts.ISO9660_SEPARATOR_2
	}
	return validateByAllowedChars(s, allowedChars, "D")
}

// isValidCCharacter reports whether r is allowed in a Joliet (c-character)
// name: any BMP code point except control characters and the six
// characters ISO9660 separators would otherwise collide with.
func isValidCCharacter(r rune) bool {
	if r > 0xFFFF {
		return false
	}
	if r <= 0x1F {
		return false
	}
	switch r {
	case 0x2A, 0x2F, 0x3A, 0x3B, 0x3F, 0x5C:
		return false
	}
	return true
}

// ValidateCCharacters checks every rune in s against the Joliet
// c-character alphabet, rejecting non-BMP code points.
func ValidateCCharacters(s string) error {
	for i, r := range s {
		if r > 0xFFFF {
			return errs.InvalidInputf("invalid Joliet character at index %d: code point %U is outside the Basic Multilingual Plane", i, r)
		}
		if !isValidCCharacter(r) {
			return errs.InvalidInputf("invalid Joliet character at index %d: disallowed code point 0x%04X", i, r)
		}
	}
	return nil
}
