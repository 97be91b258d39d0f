package store

import (
	"fmt"
	"strconv"
	"strings"
)

type DataType uint8

const (
	TypeInt DataType = 1 + iota
	TypeDouble
	TypeText
	// TypeDate is a timestamp stored as milliseconds since epoch.
	TypeDate
)

func (self DataType) String() string {
	switch self {
	case TypeInt:
		return "INT"
	case TypeDouble:
		return "DOUBLE"
	case TypeText:
		return "TEXT"
	case TypeDate:
		return "DATE"
	default:
		return "UNKNOWN_TYPE"
	}
}

// Value is a typed column value. A nil Value is NULL.
type Value interface {
	Type() DataType
	String() string
}

type IntValue int32

func (self IntValue) Type() DataType { return TypeInt }
func (self IntValue) String() string { return strconv.Itoa(int(self)) }

type DoubleValue float64

func (self DoubleValue) Type() DataType { return TypeDouble }
func (self DoubleValue) String() string { return strconv.FormatFloat(float64(self), 'f', -1, 64) }

type TextValue string

func (self TextValue) Type() DataType { return TypeText }
func (self TextValue) String() string { return string(self) }

type DateValue int64

func (self DateValue) Type() DataType { return TypeDate }
func (self DateValue) String() string { return strconv.FormatInt(int64(self), 10) }

// ParseValue converts the textual form of a value back into a typed value.
func ParseValue(t DataType, s string) (Value, error) {
	switch t {
	case TypeInt:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, NewValidationError("invalid int %q", s)
		}
		return IntValue(v), nil
	case TypeDouble:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, NewValidationError("invalid double %q", s)
		}
		return DoubleValue(v), nil
	case TypeText:
		return TextValue(s), nil
	case TypeDate:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, NewValidationError("invalid date %q", s)
		}
		return DateValue(v), nil
	default:
		return nil, NewValidationError("unknown type %d", t)
	}
}

// CompareValues orders two values of the same type. NULL sorts first.
func CompareValues(a, b Value) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch x := a.(type) {
	case IntValue:
		return compareInt64(int64(x), int64(b.(IntValue)))
	case DateValue:
		return compareInt64(int64(x), int64(b.(DateValue)))
	case DoubleValue:
		y := float64(b.(DoubleValue))
		switch {
		case float64(x) < y:
			return -1
		case float64(x) > y:
			return 1
		default:
			return 0
		}
	case TextValue:
		return strings.Compare(string(x), string(b.(TextValue)))
	default:
		panic(fmt.Sprintf("unsupported value type %T", a))
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type Column struct {
	Name  string
	Value Value
}

func IntColumn(name string, v int) Column {
	return Column{Name: name, Value: IntValue(v)}
}

func DoubleColumn(name string, v float64) Column {
	return Column{Name: name, Value: DoubleValue(v)}
}

func TextColumn(name string, v string) Column {
	return Column{Name: name, Value: TextValue(v)}
}

func DateColumn(name string, millis int64) Column {
	return Column{Name: name, Value: DateValue(millis)}
}

// Key is an ordered list of typed columns.
type Key []Column

func NewKey(columns ...Column) Key {
	return Key(columns)
}

// Encode returns a string that identifies the key. It is not order preserving.
func (self Key) Encode() string {
	var b strings.Builder
	for _, c := range self {
		b.WriteString(c.Name)
		b.WriteByte('=')
		if c.Value == nil {
			b.WriteString("\\N")
		} else {
			b.WriteString(strconv.Quote(c.Value.String()))
		}
		b.WriteByte(';')
	}
	return b.String()
}

func (self Key) String() string {
	parts := make([]string, 0, len(self))
	for _, c := range self {
		if c.Value == nil {
			parts = append(parts, c.Name+"=NULL")
		} else {
			parts = append(parts, c.Name+"="+c.Value.String())
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ComparePrefix compares the first len(bound) columns of self with bound.
func (self Key) ComparePrefix(bound Key) int {
	for i, c := range bound {
		if i >= len(self) {
			return -1
		}
		if r := CompareValues(self[i].Value, c.Value); r != 0 {
			return r
		}
	}
	return 0
}

func (self Key) Compare(other Key) int {
	n := len(self)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if r := CompareValues(self[i].Value, other[i].Value); r != 0 {
			return r
		}
	}
	return compareInt64(int64(len(self)), int64(len(other)))
}

// Values maps column names to values.
type Values map[string]Value

func (self Values) Copy() Values {
	ret := make(Values, len(self))
	for k, v := range self {
		ret[k] = v
	}
	return ret
}

// Row is the result of a read. It carries key columns as well as values.
type Row struct {
	values Values
}

func NewRow(values Values) *Row {
	return &Row{values: values}
}

// Get returns the value of a column, false when the column is absent.
// A present NULL column returns (nil, true).
func (self *Row) Get(name string) (Value, bool) {
	v, ok := self.values[name]
	return v, ok
}

func (self *Row) IsNull(name string) bool {
	v, _ := self.values[name]
	return v == nil
}

func (self *Row) Int(name string) int {
	if v, ok := self.values[name].(IntValue); ok {
		return int(v)
	}
	return 0
}

func (self *Row) Double(name string) float64 {
	if v, ok := self.values[name].(DoubleValue); ok {
		return float64(v)
	}
	return 0
}

func (self *Row) Text(name string) string {
	if v, ok := self.values[name].(TextValue); ok {
		return string(v)
	}
	return ""
}

func (self *Row) Date(name string) int64 {
	if v, ok := self.values[name].(DateValue); ok {
		return int64(v)
	}
	return 0
}

func (self *Row) Values() Values {
	return self.values.Copy()
}
