package aggregate

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"golang.org/x/text/collate"
)

type kind int

const (
	kindNull kind = iota
	kindBool
	kindNumber
	kindTime
	kindString
)

// classify maps a field value onto a comparable kind. Nil pointers, NaN and
// zero times count as null.
func classify(v any) (kind, any) {
	switch x := v.(type) {
	case nil:
		return kindNull, nil
	case bool:
		return kindBool, x
	case string:
		return kindString, x
	case time.Time:
		if x.IsZero() {
			return kindNull, nil
		}
		return kindTime, x
	case *time.Time:
		if x == nil || x.IsZero() {
			return kindNull, nil
		}
		return kindTime, *x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return kindString, x.String()
		}
		return number(f)
	case float64:
		return number(x)
	case float32:
		return number(float64(x))
	case int:
		return kindNumber, float64(x)
	case int64:
		return kindNumber, float64(x)
	case int32:
		return kindNumber, float64(x)
	case uint:
		return kindNumber, float64(x)
	case uint64:
		return kindNumber, float64(x)
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return kindNull, nil
		}
		return kindString, x.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return kindNull, nil
		}
		return classify(rv.Elem().Interface())
	}
	return kindString, fmt.Sprint(v)
}

func number(f float64) (kind, any) {
	if math.IsNaN(f) {
		return kindNull, nil
	}
	return kindNumber, f
}

// comparer orders non-null values. Values of different kinds order by kind.
type comparer struct {
	collator *collate.Collator
}

func (c *comparer) compare(ka kind, a any, kb kind, b any) int {
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch ka {
	case kindBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case kindNumber:
		return cmp.Compare(a.(float64), b.(float64))
	case kindTime:
		return a.(time.Time).Compare(b.(time.Time))
	case kindString:
		as, bs := a.(string), b.(string)
		if c.collator != nil {
			if r := c.collator.CompareString(as, bs); r != 0 {
				return r
			}
		}
		return strings.Compare(as, bs)
	}
	return 0
}

// equalValues reports whether an item value satisfies an exact-match filter.
// Numbers compare by value regardless of their Go type.
func equalValues(have, want any) bool {
	kh, h := classify(have)
	kw, w := classify(want)
	if kh != kw {
		return false
	}
	if kh == kindNull {
		return true
	}
	if kh == kindTime {
		return h.(time.Time).Equal(w.(time.Time))
	}
	return h == w
}
