package token

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat is returned when a candidate string is not shaped like a
// three-segment signed token.
var ErrInvalidFormat = errors.New("invalid token format")

// Token is a string that passed [Validate].
type Token string

// String returns the raw token text.
func (t Token) String() string {
	return string(t)
}

// Validate accepts candidate iff it is segment.segment.segment with every
// segment non-empty and drawn from [A-Za-z0-9_-].
//
//	Performance: single pass, no allocation on success beyond the conversion.
func Validate(candidate string) (Token, error) {
	if err := check(candidate); err != nil {
		return "", err
	}
	return Token(candidate), nil
}

// Valid reports whether candidate passes [Validate].
func Valid(candidate string) bool {
	return check(candidate) == nil
}

func check(candidate string) error {
	if candidate == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFormat)
	}

	segments := 1
	segmentLen := 0
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if c == '.' {
			if segmentLen == 0 {
				return fmt.Errorf("%w: empty segment %d", ErrInvalidFormat, segments)
			}
			segments++
			if segments > 3 {
				return fmt.Errorf("%w: too many segments", ErrInvalidFormat)
			}
			segmentLen = 0
			continue
		}
		if !isSegmentByte(c) {
			return fmt.Errorf("%w: illegal character at offset %d", ErrInvalidFormat, i)
		}
		segmentLen++
	}

	if segmentLen == 0 {
		return fmt.Errorf("%w: empty segment %d", ErrInvalidFormat, segments)
	}
	if segments != 3 {
		return fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidFormat, segments)
	}
	return nil
}

func isSegmentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	default:
		return false
	}
}
