package account

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

// MaxPrincipalLen is the longest serialized principal accepted by the ledgers.
const MaxPrincipalLen = 29

// ErrInvalidPrincipal is returned when a textual principal cannot be decoded.
var ErrInvalidPrincipal = errors.New("invalid principal")

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal is an opaque owner identifier.
//
// The zero value is the empty principal, used as the placeholder for
// unconfigured service identities. Principal is comparable and can be used
// as a map key.
type Principal struct {
	raw string
}

var (
	// Anonymous is the identity of unauthenticated callers.
	Anonymous = PrincipalFromBytes([]byte{0x04})

	// Placeholder is the empty principal ("aaaaa-aa").
	Placeholder = Principal{}
)

// PrincipalFromBytes wraps raw principal bytes. The slice is copied.
func PrincipalFromBytes(b []byte) Principal {
	return Principal{raw: string(b)}
}

// ParsePrincipal decodes the textual form: lowercase base32 of
// crc32(bytes) || bytes, grouped in 5-character chunks separated by '-'.
func ParsePrincipal(text string) (Principal, error) {
	compact := strings.ToUpper(strings.ReplaceAll(text, "-", ""))
	buf, err := principalEncoding.DecodeString(compact)
	if err != nil {
		return Principal{}, fmt.Errorf("%w %q: %v", ErrInvalidPrincipal, text, err)
	}
	if len(buf) < 4 {
		return Principal{}, fmt.Errorf("%w %q: too short", ErrInvalidPrincipal, text)
	}

	p := PrincipalFromBytes(buf[4:])
	if binary.BigEndian.Uint32(buf[:4]) != crc32.ChecksumIEEE(buf[4:]) {
		return Principal{}, fmt.Errorf("%w %q: checksum mismatch", ErrInvalidPrincipal, text)
	}
	if p.String() != text {
		return Principal{}, fmt.Errorf("%w %q: not in canonical form (expected %q)", ErrInvalidPrincipal, text, p.String())
	}
	return p, nil
}

// MustParsePrincipal is like ParsePrincipal but panics on error.
// Intended for constants and tests.
func MustParsePrincipal(text string) Principal {
	p, err := ParsePrincipal(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Bytes returns a copy of the raw principal bytes.
func (p Principal) Bytes() []byte {
	return []byte(p.raw)
}

// Len returns the length of the serialized principal.
func (p Principal) Len() int {
	return len(p.raw)
}

// IsAnonymous reports whether p is the anonymous identity.
func (p Principal) IsAnonymous() bool {
	return p == Anonymous
}

// IsPlaceholder reports whether p is the empty principal.
func (p Principal) IsPlaceholder() bool {
	return p.raw == ""
}

// String returns the canonical textual form.
func (p Principal) String() string {
	buf := make([]byte, 4+len(p.raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE([]byte(p.raw)))
	copy(buf[4:], p.raw)

	enc := strings.ToLower(principalEncoding.EncodeToString(buf))

	var sb strings.Builder
	sb.Grow(len(enc) + len(enc)/5)
	for i := 0; i < len(enc); i += 5 {
		if i > 0 {
			sb.WriteByte('-')
		}
		end := min(i+5, len(enc))
		sb.WriteString(enc[i:end])
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipal(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
