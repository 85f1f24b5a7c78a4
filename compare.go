package fieldz

import (
	"cmp"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

// Equal reports whether a and b hold the same datum.
//
// Kinds must match exactly. Regexes compare by source, objects by reference.
// Pipelines are never equal to anything, themselves included.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool, KindInt32, KindInt64, KindFloat32, KindFloat64, KindString, KindEnum:
		return a.p == b.p
	case KindDecimal:
		return a.p.(*big.Rat).Cmp(b.p.(*big.Rat)) == 0
	case KindDate, KindDateTime:
		return a.p.(time.Time).Equal(b.p.(time.Time))
	case KindArray, KindTuple:
		as, bs := a.p.([]Value), b.p.([]Value)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	case KindDict:
		ad, bd := a.p.(*Dict), b.p.(*Dict)
		if ad.Len() != bd.Len() {
			return false
		}
		for i, k := range ad.keys {
			if bd.keys[i] != k || !Equal(ad.vals[k], bd.vals[k]) {
				return false
			}
		}
		return true
	case KindObject:
		return a.p.(Object) == b.p.(Object)
	case KindRegex:
		return a.p.(*regexp.Regexp).String() == b.p.(*regexp.Regexp).String()
	case KindRange:
		ar, br := a.p.(Bounds), b.p.(Bounds)
		return ar.Closed == br.Closed && Equal(ar.Start, br.Start) && Equal(ar.End, br.End)
	case KindPipeline:
		return false
	default:
		return false
	}
}

// Compare orders a and b, returning -1, 0 or +1.
//
// Ordering is total for same-kind pairs of null, bool, numeric, string, enum,
// date, datetime, array and tuple values. Mismatched kinds and unordered kinds
// return ErrIncomparable.
func Compare(a, b Value) (int, error) {
	if a.kind != b.kind {
		return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, a.kind, b.kind)
	}
	switch a.kind {
	case KindNull:
		return 0, nil
	case KindBool:
		ab, bb := a.p.(bool), b.p.(bool)
		switch {
		case ab == bb:
			return 0, nil
		case ab:
			return 1, nil
		default:
			return -1, nil
		}
	case KindInt32:
		return cmp.Compare(a.p.(int32), b.p.(int32)), nil
	case KindInt64:
		return cmp.Compare(a.p.(int64), b.p.(int64)), nil
	case KindFloat32:
		return cmp.Compare(a.p.(float32), b.p.(float32)), nil
	case KindFloat64:
		return cmp.Compare(a.p.(float64), b.p.(float64)), nil
	case KindDecimal:
		return a.p.(*big.Rat).Cmp(b.p.(*big.Rat)), nil
	case KindString, KindEnum:
		return cmp.Compare(a.p.(string), b.p.(string)), nil
	case KindDate, KindDateTime:
		return a.p.(time.Time).Compare(b.p.(time.Time)), nil
	case KindArray, KindTuple:
		as, bs := a.p.([]Value), b.p.([]Value)
		for i := 0; i < len(as) && i < len(bs); i++ {
			c, err := Compare(as[i], bs[i])
			if err != nil || c != 0 {
				return c, err
			}
		}
		return cmp.Compare(len(as), len(bs)), nil
	case KindDict, KindObject, KindRegex, KindRange, KindPipeline:
		return 0, fmt.Errorf("%w: %s values are unordered", ErrIncomparable, a.kind)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupported, a.kind)
	}
}

// Contains reports whether v lies within the bounds.
func (r Bounds) Contains(v Value) (bool, error) {
	lo, err := Compare(r.Start, v)
	if err != nil {
		return false, err
	}
	if lo > 0 {
		return false, nil
	}
	hi, err := Compare(v, r.End)
	if err != nil {
		return false, err
	}
	if r.Closed {
		return hi <= 0, nil
	}
	return hi < 0, nil
}
