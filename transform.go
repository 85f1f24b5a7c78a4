package fieldz

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ToLowerCase lowercases a string.
func ToLowerCase() Op { return stringOp("toLowerCase", strings.ToLower) }

// ToUpperCase uppercases a string.
func ToUpperCase() Op { return stringOp("toUpperCase", strings.ToUpper) }

// ToTitleCase capitalizes every word of a string.
func ToTitleCase() Op {
	// A Caser keeps state, so one is made per call instead of shared.
	return stringOp("toTitleCase", func(s string) string {
		return cases.Title(language.Und).String(s)
	})
}

// Trim strips leading and trailing white space.
func Trim() Op { return stringOp("trim", strings.TrimSpace) }

// Prepend puts v in front of a string (v must be a string) or an array or
// tuple.
func Prepend(v Value) Op { return affix("prepend", v, true) }

// Append puts v after a string (v must be a string) or an array or tuple.
func Append(v Value) Op { return affix("append", v, false) }

func affix(name Name, arg Value, front bool) Op {
	return Func(name, func(ctx context.Context, c Context) (Context, error) {
		switch c.value.kind {
		case KindString:
			s, _ := c.value.AsString()
			a, err := argString(ctx, c, name, arg)
			if err != nil {
				return c, err
			}
			if front {
				return c.WithValue(String(a + s)), nil
			}
			return c.WithValue(String(s + a)), nil
		case KindArray, KindTuple:
			elems, _ := c.value.AsArray()
			a, err := resolveArg(ctx, c, arg)
			if err != nil {
				return c, err
			}
			out := make([]Value, 0, len(elems)+1)
			if front {
				out = append(append(out, a), elems...)
			} else {
				out = append(append(out, elems...), a)
			}
			return c.WithValue(sequenceLike(c.value, out)), nil
		default:
			return c, wrongKind(c, name, c.value, KindString, KindArray, KindTuple)
		}
	}, arg)
}

// PadStart left-pads a string with char until it is width runes long.
func PadStart(width, char Value) Op { return pad("padStart", width, char, true) }

// PadEnd right-pads a string with char until it is width runes long.
func PadEnd(width, char Value) Op { return pad("padEnd", width, char, false) }

func pad(name Name, width, char Value, start bool) Op {
	return Func(name, func(ctx context.Context, c Context) (Context, error) {
		s, ok := c.value.AsString()
		if !ok {
			return c, wrongKind(c, name, c.value, KindString)
		}
		w, err := argInt(ctx, c, name, width)
		if err != nil {
			return c, err
		}
		ch, err := argString(ctx, c, name, char)
		if err != nil {
			return c, err
		}
		if utf8.RuneCountInString(ch) != 1 {
			return c, InternalServerError(c.path, "%s fill must be a single character, got %q", name, ch)
		}
		missing := w - utf8.RuneCountInString(s)
		if missing <= 0 {
			return c, nil
		}
		fill := strings.Repeat(ch, missing)
		if start {
			return c.WithValue(String(fill + s)), nil
		}
		return c.WithValue(String(s + fill)), nil
	}, width, char)
}

// Truncate keeps the first n runes of a string or the first n elements of an
// array or tuple.
func Truncate(n Value) Op {
	return Func("truncate", func(ctx context.Context, c Context) (Context, error) {
		limit, err := argInt(ctx, c, "truncate", n)
		if err != nil {
			return c, err
		}
		switch c.value.kind {
		case KindString:
			s, _ := c.value.AsString()
			r := []rune(s)
			if len(r) > limit {
				r = r[:limit]
			}
			return c.WithValue(String(string(r))), nil
		case KindArray, KindTuple:
			elems, _ := c.value.AsArray()
			if len(elems) > limit {
				elems = elems[:limit]
			}
			return c.WithValue(sequenceLike(c.value, elems)), nil
		default:
			return c, wrongKind(c, "truncate", c.value, KindString, KindArray, KindTuple)
		}
	}, n)
}

// Split breaks a string into an array of strings around sep.
func Split(sep Value) Op {
	return Func("split", func(ctx context.Context, c Context) (Context, error) {
		s, ok := c.value.AsString()
		if !ok {
			return c, wrongKind(c, "split", c.value, KindString)
		}
		d, err := argString(ctx, c, "split", sep)
		if err != nil {
			return c, err
		}
		parts := strings.Split(s, d)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = String(p)
		}
		return c.WithValue(Array(out...)), nil
	}, sep)
}

// Join concatenates an array of strings with sep.
func Join(sep Value) Op {
	return Func("join", func(ctx context.Context, c Context) (Context, error) {
		elems, ok := c.value.AsArray()
		if !ok {
			return c, wrongKind(c, "join", c.value, KindArray, KindTuple)
		}
		d, err := argString(ctx, c, "join", sep)
		if err != nil {
			return c, err
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			s, isStr := e.AsString()
			if !isStr {
				return c, wrongKind(c.Child(Index(i)), "join", e, KindString)
			}
			parts[i] = s
		}
		return c.WithValue(String(strings.Join(parts, d))), nil
	}, sep)
}
