package record

import (
	"cmp"
	"fmt"
	"reflect"
	"time"
)

// number is a numeric value normalized for comparison.
type number struct {
	float bool
	neg   bool // signed integer below zero
	u     uint64
	i     int64
	f     float64
}

func toNumber(v any) (number, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return number{u: 1, i: 1}, true
		}
		return number{}, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		return number{neg: i < 0, u: uint64(i), i: i}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		return number{u: u, i: int64(u)}, true
	case reflect.Float32, reflect.Float64:
		return number{float: true, f: rv.Float()}, true
	default:
		return number{}, false
	}
}

func (n number) float64() float64 {
	switch {
	case n.float:
		return n.f
	case n.neg:
		return float64(n.i)
	default:
		return float64(n.u)
	}
}

func (n number) compare(m number) int {
	if n.float || m.float {
		return cmp.Compare(n.float64(), m.float64())
	}
	switch {
	case n.neg && m.neg:
		return cmp.Compare(n.i, m.i)
	case n.neg:
		return -1
	case m.neg:
		return 1
	default:
		return cmp.Compare(n.u, m.u)
	}
}

// sameValue reports whether a stored attribute and a new value are equal.
// Numbers and booleans compare by numeric value, byte slices as strings and
// times by instant. Numeric strings are not numbers.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := toNumber(a); ok {
		y, ok := toNumber(b)
		return ok && x.compare(y) == 0
	}
	if x, ok := textOf(a); ok {
		y, ok := textOf(b)
		return ok && x == y
	}
	if x, ok := a.(time.Time); ok {
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}

func textOf(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// compareValues orders attribute values: nil first, then numbers, times and
// text by value. Values of other kinds compare by their formatted text.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return x.compare(y)
		}
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	if x, ok := textOf(a); ok {
		if y, ok := textOf(b); ok {
			return cmp.Compare(x, y)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
