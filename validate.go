package fieldz

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	hexColorPattern = regexp.MustCompile(`^#?(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)
	numericPattern  = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)$`)
)

// IsEmail requires a string that looks like an email address.
func IsEmail() Op {
	return check("isEmail", "value is not a valid email address", emailPattern.MatchString)
}

// IsAlphabetic requires a non-empty string of letters.
func IsAlphabetic() Op {
	return check("isAlphabetic", "value is not alphabetic", func(s string) bool {
		return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) < 0
	})
}

// IsAlphanumeric requires a non-empty string of letters and digits.
func IsAlphanumeric() Op {
	return check("isAlphanumeric", "value is not alphanumeric", func(s string) bool {
		return s != "" && strings.IndexFunc(s, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) < 0
	})
}

// IsNumeric requires a string holding a decimal number.
func IsNumeric() Op {
	return check("isNumeric", "value is not numeric", numericPattern.MatchString)
}

// IsHexColor requires a 3 or 6 digit hex color, with or without "#".
func IsHexColor() Op {
	return check("isHexColor", "value is not a hex color", hexColorPattern.MatchString)
}

// IsUUID requires a string in canonical UUID form.
func IsUUID() Op {
	return check("isUUID", "value is not a valid uuid", func(s string) bool {
		return uuid.Validate(s) == nil
	})
}

// IsNull requires null.
func IsNull() Op {
	return Func("isNull", func(_ context.Context, c Context) (Context, error) {
		if !c.value.IsNull() {
			return c, ValidationError(c.path, "value is not null")
		}
		return c, nil
	})
}

// Present requires anything but null.
func Present() Op {
	return Func("present", func(_ context.Context, c Context) (Context, error) {
		if c.value.IsNull() {
			return c, ValidationError(c.path, "value is required")
		}
		return c, nil
	})
}

// Match requires a string matching pattern, which must be a regex value.
func Match(pattern Value) Op {
	return Func("regex", func(ctx context.Context, c Context) (Context, error) {
		s, ok := c.value.AsString()
		if !ok {
			return c, wrongKind(c, "regex", c.value, KindString)
		}
		p, err := resolveArg(ctx, c, pattern)
		if err != nil {
			return c, err
		}
		re, ok := p.AsRegex()
		if !ok {
			return c, wrongKind(c, "regex", p, KindRegex)
		}
		if !re.MatchString(s) {
			return c, ValidationError(c.path, fmt.Sprintf("value does not match %s", re))
		}
		return c, nil
	}, pattern)
}

// HasPrefix requires a string starting with prefix.
func HasPrefix(prefix Value) Op {
	return Func("hasPrefix", func(ctx context.Context, c Context) (Context, error) {
		s, ok := c.value.AsString()
		if !ok {
			return c, wrongKind(c, "hasPrefix", c.value, KindString)
		}
		p, err := argString(ctx, c, "hasPrefix", prefix)
		if err != nil {
			return c, err
		}
		if !strings.HasPrefix(s, p) {
			return c, ValidationError(c.path, fmt.Sprintf("value does not have prefix %q", p))
		}
		return c, nil
	}, prefix)
}

// HasSuffix requires a string ending with suffix.
func HasSuffix(suffix Value) Op {
	return Func("hasSuffix", func(ctx context.Context, c Context) (Context, error) {
		s, ok := c.value.AsString()
		if !ok {
			return c, wrongKind(c, "hasSuffix", c.value, KindString)
		}
		p, err := argString(ctx, c, "hasSuffix", suffix)
		if err != nil {
			return c, err
		}
		if !strings.HasSuffix(s, p) {
			return c, ValidationError(c.path, fmt.Sprintf("value does not have suffix %q", p))
		}
		return c, nil
	}, suffix)
}

// LengthBetween requires a string (in runes), an array or a tuple whose
// length lies within [lower, upper].
func LengthBetween(lower, upper Value) Op {
	return Func("lengthBetween", func(ctx context.Context, c Context) (Context, error) {
		switch c.value.kind {
		case KindString, KindArray, KindTuple:
		default:
			return c, wrongKind(c, "lengthBetween", c.value, KindString, KindArray, KindTuple)
		}
		n, _ := c.value.Len()
		lo, err := argInt(ctx, c, "lengthBetween", lower)
		if err != nil {
			return c, err
		}
		hi, err := argInt(ctx, c, "lengthBetween", upper)
		if err != nil {
			return c, err
		}
		if n < lo || n > hi {
			return c, ValidationError(c.path, fmt.Sprintf("length must be between %d and %d, got %d", lo, hi, n))
		}
		return c, nil
	}, lower, upper)
}

// OneOf requires a value equal to one of choices.
func OneOf(choices ...Value) Op {
	return Func("oneOf", func(ctx context.Context, c Context) (Context, error) {
		for _, choice := range choices {
			v, err := resolveArg(ctx, c, choice)
			if err != nil {
				return c, err
			}
			if Equal(c.value, v) {
				return c, nil
			}
		}
		return c, ValidationError(c.path, fmt.Sprintf("value must be one of %s", Array(choices...)))
	}, choices...)
}
