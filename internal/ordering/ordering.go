// Package ordering sorts process-like records by an ordered list of keys
// using case-insensitive natural order.
package ordering

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/maruel/natural"
)

// ErrUnsupportedSortKey is returned for a field or direction name that is not
// recognized.
var ErrUnsupportedSortKey = errors.New("unsupported sort key")

// Field names a sortable column.
type Field string

const (
	FieldPID       Field = "pid"
	FieldParentPID Field = "ppid"
	FieldName      Field = "name"
	FieldAddr      Field = "addr"
	FieldPort      Field = "port"
	FieldMemory    Field = "memory"
	FieldUptime    Field = "uptime"
)

// Fields lists every supported field in display order.
var Fields = []Field{FieldPID, FieldParentPID, FieldName, FieldAddr, FieldPort, FieldMemory, FieldUptime}

var fieldAliases = map[string]Field{
	"pid":        FieldPID,
	"ppid":       FieldParentPID,
	"parent":     FieldParentPID,
	"parent-pid": FieldParentPID,
	"name":       FieldName,
	"addr":       FieldAddr,
	"local-addr": FieldAddr,
	"port":       FieldPort,
	"local-port": FieldPort,
	"memory":     FieldMemory,
	"mem":        FieldMemory,
	"uptime":     FieldUptime,
}

// ParseField resolves a field name, case-insensitively.
func ParseField(name string) (Field, error) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: field %q", ErrUnsupportedSortKey, name)
	}
	return f, nil
}

// Valid reports whether f is a supported field.
func (f Field) Valid() bool {
	return slices.Contains(Fields, f)
}

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Key is one sort criterion.
type Key struct {
	Field     Field     `json:"field" yaml:"field"`
	Direction Direction `json:"direction" yaml:"direction"`
}

func (k Key) String() string {
	return string(k.Field) + ":" + string(k.Direction)
}

// ParseKey parses "field" or "field:asc|desc". A bare field sorts ascending.
func ParseKey(s string) (Key, error) {
	name, dir, hasDir := strings.Cut(s, ":")
	f, err := ParseField(name)
	if err != nil {
		return Key{}, err
	}
	k := Key{Field: f, Direction: Asc}
	if hasDir {
		switch Direction(strings.ToLower(strings.TrimSpace(dir))) {
		case Asc:
		case Desc:
			k.Direction = Desc
		default:
			return Key{}, fmt.Errorf("%w: direction %q", ErrUnsupportedSortKey, dir)
		}
	}
	return k, nil
}

// ParseKeys parses each entry with ParseKey and fails on the first bad one.
func ParseKeys(specs []string) ([]Key, error) {
	keys := make([]Key, 0, len(specs))
	for _, s := range specs {
		k, err := ParseKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Validate checks every key's field and direction.
func Validate(keys []Key) error {
	for _, k := range keys {
		if !k.Field.Valid() {
			return fmt.Errorf("%w: field %q", ErrUnsupportedSortKey, k.Field)
		}
		if k.Direction != Asc && k.Direction != Desc {
			return fmt.Errorf("%w: direction %q", ErrUnsupportedSortKey, k.Direction)
		}
	}
	return nil
}

// Sortable is implemented by records that expose a string value per field.
// Absent values must be returned as "".
type Sortable interface {
	SortValue(f Field) string
}

// Compare orders two field values naturally and case-insensitively. Digit
// runs compare by numeric value; "" sorts before any non-empty value.
func Compare(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 0
	}
	if c, ok := compareLongRuns(a, b); ok {
		return c
	}
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return 0
}

// maxShortRun is the longest digit run that always fits in a uint64.
const maxShortRun = 19

// compareLongRuns decides the order when the first differing chunk pair is a
// digit run too long for natural.Less to parse. Such runs compare by length
// without leading zeros, then by text. ok is false when natural.Less should
// decide.
func compareLongRuns(a, b string) (c int, ok bool) {
	for a != "" && b != "" {
		ca, cb := leadingChunk(a), leadingChunk(b)
		a, b = a[len(ca):], b[len(cb):]
		if !isDigit(ca[0]) || !isDigit(cb[0]) {
			if ca != cb {
				return 0, false
			}
			continue
		}
		na, nb := strings.TrimLeft(ca, "0"), strings.TrimLeft(cb, "0")
		if na == nb {
			continue
		}
		if len(na) <= maxShortRun && len(nb) <= maxShortRun {
			return 0, false
		}
		if len(na) != len(nb) {
			if len(na) < len(nb) {
				return -1, true
			}
			return 1, true
		}
		return strings.Compare(na, nb), true
	}
	return 0, false
}

// leadingChunk returns the leading run of digits or of non-digits of s.
func leadingChunk(s string) string {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i]
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// Sort stably reorders items in place. Keys apply in sequence as tie-breaks;
// ties left after the last key keep their input order. On an invalid key the
// slice is left untouched.
func Sort[T Sortable](items []T, keys []Key) error {
	if err := Validate(keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	slices.SortStableFunc(items, func(a, b T) int {
		for _, k := range keys {
			c := Compare(a.SortValue(k.Field), b.SortValue(k.Field))
			if c == 0 {
				continue
			}
			if k.Direction == Desc {
				return -c
			}
			return c
		}
		return 0
	})
	return nil
}
