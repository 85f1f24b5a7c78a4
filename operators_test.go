package fieldz

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestComparisons(t *testing.T) {
	day := func(d int) Value { return Date(time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)) }

	tests := []struct {
		name  string
		item  Item
		in    Value
		valid bool
	}{
		{"gte equal", Gte(Int(3)), Int(3), true},
		{"gte less", Gte(Int(3)), Int(2), false},
		{"gt equal", Gt(Int(3)), Int(3), false},
		{"gt more", Gt(Int(3)), Int(4), true},
		{"lte equal", Lte(Int(3)), Int(3), true},
		{"lt equal", Lt(Int(3)), Int(3), false},
		{"lt less", Lt(Int(3)), Int(2), true},
		{"string order", Gt(String("apple")), String("banana"), true},
		{"date order", Lt(day(10)), day(9), true},
		{"eq", Eq(String("x")), String("x"), true},
		{"eq other kind", Eq(Int(1)), String("1"), false},
		{"neq", Neq(Int(1)), Int(2), true},
		{"neq same", Neq(Int(1)), Int(1), false},
		{"within closed end", Within(Range(Int(1), Int(5), true)), Int(5), true},
		{"within open end", Within(Range(Int(1), Int(5), false)), Int(5), false},
		{"within below", Within(Range(Int(1), Int(5), true)), Int(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.item, tt.in)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestComparisonDecimals(t *testing.T) {
	_, err := run(t, Gte(mustDecimal(t, "10.00")), mustDecimal(t, "9.999"))
	if !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	var fe *Error
	errors.As(err, &fe)
	if fe.Reason != "value must be greater than or equal to 10" {
		t.Errorf("unexpected reason %q", fe.Reason)
	}
}

func TestComparisonIncomparable(t *testing.T) {
	tests := []struct {
		name string
		item Item
		in   Value
	}{
		{"gte on string", Gte(Int(3)), String("3")},
		{"lt across int widths", Lt(Int32(3)), Int64(2)},
		{"within wrong kind", Within(Range(Int(1), Int(5), true)), String("a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.item, tt.in)
			if !IsFatal(err) || !errors.Is(err, ErrIncomparable) {
				t.Errorf("expected incomparable fatal error, got %v", err)
			}
		})
	}

	t.Run("within needs a range", func(t *testing.T) {
		_, err := run(t, Within(Int(1)), Int(1))
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected unsupported error, got %v", err)
		}
	})
}

func TestComparisonWithPipelineArgument(t *testing.T) {
	// The minimum is computed from the bound object.
	obj := &testObject{name: "limit"}
	minimum := NewPipeline("minimum", Self(), Set(Int(18)))
	in := NewContext(Int(21), WithObject(obj))
	if _, err := Gte(Pipe(minimum)).Call(context.Background(), in); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}
