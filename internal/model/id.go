package model

import (
	"cmp"
	"math"
	"strconv"
	"strings"
)

// ID identifies a point or line feature by the text form of its id column.
type ID string

// IDOrder compares the ids of one column. A column whose every id is a
// canonical number compares by value; any other column compares as text, so
// "010" sorts before "9" when the column carries zero-padded codes.
type IDOrder struct {
	numeric bool
}

// NewIDOrder inspects every id of a column. An empty column orders as text.
func NewIDOrder(ids []ID) IDOrder {
	if len(ids) == 0 {
		return IDOrder{}
	}
	for _, id := range ids {
		if _, ok := numericID(id); !ok {
			return IDOrder{}
		}
	}
	return IDOrder{numeric: true}
}

// Numeric reports whether the column compares by value.
func (o IDOrder) Numeric() bool { return o.numeric }

// Compare orders a and b. Equal numbers with different text ("1", "1.0")
// fall back to text so the order stays total.
func (o IDOrder) Compare(a, b ID) int {
	if o.numeric {
		af, aok := numericID(a)
		bf, bok := numericID(b)
		if aok && bok {
			if c := cmp.Compare(af, bf); c != 0 {
				return c
			}
		}
	}
	return strings.Compare(string(a), string(b))
}

// numericID parses id as a finite number written the way a numeric column
// renders it: no surrounding space and no leading zero before other digits.
func numericID(id ID) (float64, bool) {
	s := string(id)
	if s == "" || s != strings.TrimSpace(s) {
		return 0, false
	}
	digits := strings.TrimPrefix(s, "-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
