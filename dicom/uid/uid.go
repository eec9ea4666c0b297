// Package uid validates DICOM Unique Identifiers and carries the registry
// metadata (PS3.6 chapter A) the gateway consults when negotiating
// presentation contexts and harvesting Storage SOP classes.
package uid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// UID is a validated DICOM Unique Identifier: dotted numeric components,
// at most 64 characters, no empty components, no leading zeros (PS3.5 §9.1).
type UID struct {
	value string
}

// String returns the UID's dotted-decimal form.
func (u UID) String() string {
	return u.value
}

// IsValid reports whether s satisfies the PS3.5 §9.1 UID syntax rules.
func IsValid(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}

	dots := 0
	compLen := 0
	leadingZero := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '.':
			if compLen == 0 || leadingZero {
				return false
			}
			dots++
			compLen = 0
		case c >= '0' && c <= '9':
			if compLen == 1 && s[i-1] == '0' {
				// "0" alone is a legal component; "01" is not.
				leadingZero = true
			}
			compLen++
		default:
			return false
		}
	}
	if compLen == 0 || leadingZero {
		// Trailing dot, or the final component carries a leading zero.
		return false
	}
	return dots >= 1
}

// Parse validates s and wraps it as a UID.
func Parse(s string) (UID, error) {
	if !IsValid(s) {
		return UID{}, fmt.Errorf("invalid UID: %q", s)
	}
	return UID{value: s}, nil
}

// MustParse is Parse for compile-time-known UIDs; it panics on a bad value.
func MustParse(s string) UID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Find returns the registry Info for a UID string.
func Find(uid string) (Info, error) {
	info, ok := uidMap[uid]
	if !ok {
		return Info{}, fmt.Errorf("UID %q not found in dictionary", uid)
	}
	return info, nil
}

// FindAllByType returns every registry entry of the given Type. The slice
// is freshly allocated on each call.
func FindAllByType(t Type) []Info {
	var results []Info
	for _, info := range uidMap {
		if info.Type == t {
			results = append(results, info)
		}
	}
	return results
}

// generatedRoot prefixes every UID this process mints. PixelMed's reserved
// root is the conventional choice for implementations without their own
// ISO OID arc.
const generatedRoot = "1.2.826.0.1.3680043.10"

// Generate mints a fresh UID from the generated root, the current
// microsecond timestamp, and 32 bits of randomness.
func Generate() string {
	ts := time.Now().UnixMicro()
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%s.%d", generatedRoot, ts)
	}
	return fmt.Sprintf("%s.%d.%d", generatedRoot, ts, binary.BigEndian.Uint32(b[:]))
}
