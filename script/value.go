package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// maxDepth bounds conversion of nested tables so cyclic structures fail
// instead of recursing forever.
const maxDepth = 128

var (
	ErrTooDeep          = errors.New("value nesting too deep")
	ErrUnsupportedValue = errors.New("unsupported value type")
)

// ValueKind discriminates a Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueArray
	ValueObject
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueString:
		return "string"
	case ValueArray:
		return "array"
	case ValueObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the structured value type crossing the script boundary. The zero
// Value is null.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	i    int64
	s    string
	arr  []Value
	obj  map[string]Value
}

func Null() Value                     { return Value{} }
func Bool(b bool) Value               { return Value{kind: ValueBool, b: b} }
func Int(i int64) Value               { return Value{kind: ValueInt, i: i} }
func Float(f float64) Value           { return Value{kind: ValueFloat, n: f} }
func String(s string) Value           { return Value{kind: ValueString, s: s} }
func Array(vs ...Value) Value         { return Value{kind: ValueArray, arr: vs} }
func Object(m map[string]Value) Value { return Value{kind: ValueObject, obj: m} }

// Number builds a numeric Value, classifying integral values within the
// int64-exact range as Int and everything else as Float.
func Number(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) <= 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}

func (v Value) Kind() ValueKind          { return v.kind }
func (v Value) IsNull() bool             { return v.kind == ValueNull }
func (v Value) Bool() bool               { return v.b }
func (v Value) Int() int64               { return v.i }
func (v Value) Float() float64           { return v.n }
func (v Value) Str() string              { return v.s }
func (v Value) Array() []Value           { return v.arr }
func (v Value) Object() map[string]Value { return v.obj }

// FromLua converts a Lua value into a Value. Tables whose keys are exactly
// 1..N convert to arrays; all other tables convert to objects with keys
// stringified. Functions, userdata, and other exotic values are rejected.
func FromLua(lv lua.LValue) (Value, error) {
	return fromLua(lv, 0)
}

func fromLua(lv lua.LValue, depth int) (Value, error) {
	if depth > maxDepth {
		return Null(), ErrTooDeep
	}
	switch v := lv.(type) {
	case *lua.LNilType, nil:
		return Null(), nil
	case lua.LBool:
		return Bool(bool(v)), nil
	case lua.LNumber:
		return Number(float64(v)), nil
	case lua.LString:
		return String(string(v)), nil
	case *lua.LTable:
		return tableToValue(v, depth)
	default:
		return Null(), fmt.Errorf("%w: %s", ErrUnsupportedValue, lv.Type().String())
	}
}

func tableToValue(t *lua.LTable, depth int) (Value, error) {
	count := 0
	maxIdx := 0
	isArray := true
	var convErr error
	t.ForEach(func(k, _ lua.LValue) {
		count++
		n, ok := k.(lua.LNumber)
		if !ok || float64(n) != math.Trunc(float64(n)) || n < 1 {
			isArray = false
			return
		}
		if int(n) > maxIdx {
			maxIdx = int(n)
		}
	})

	if isArray && count > 0 && maxIdx == count {
		arr := make([]Value, 0, count)
		for i := 1; i <= count; i++ {
			elem, err := fromLua(t.RawGetInt(i), depth+1)
			if err != nil {
				return Null(), err
			}
			arr = append(arr, elem)
		}
		return Array(arr...), nil
	}

	obj := make(map[string]Value, count)
	t.ForEach(func(k, val lua.LValue) {
		if convErr != nil {
			return
		}
		elem, err := fromLua(val, depth+1)
		if err != nil {
			convErr = err
			return
		}
		obj[lvalueKey(k)] = elem
	})
	if convErr != nil {
		return Null(), convErr
	}
	return Object(obj), nil
}

func lvalueKey(k lua.LValue) string {
	if n, ok := k.(lua.LNumber); ok {
		return formatNumber(float64(n))
	}
	return k.String()
}

// ToLua converts a Value into a Lua value on the given state.
func ToLua(l *lua.LState, v Value) lua.LValue {
	switch v.kind {
	case ValueNull:
		return lua.LNil
	case ValueBool:
		return lua.LBool(v.b)
	case ValueInt:
		return lua.LNumber(v.i)
	case ValueFloat:
		return lua.LNumber(v.n)
	case ValueString:
		return lua.LString(v.s)
	case ValueArray:
		t := l.CreateTable(len(v.arr), 0)
		for i, elem := range v.arr {
			t.RawSetInt(i+1, ToLua(l, elem))
		}
		return t
	case ValueObject:
		t := l.CreateTable(0, len(v.obj))
		for k, elem := range v.obj {
			t.RawSetString(k, ToLua(l, elem))
		}
		return t
	default:
		return lua.LNil
	}
}

// EncodeJSON renders a Value as compact JSON.
func (v Value) EncodeJSON() (string, error) {
	raw, err := json.Marshal(v.toAny())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// EncodeJSONIndent renders a Value as indented JSON with sorted object keys.
func (v Value) EncodeJSONIndent() (string, error) {
	raw, err := json.MarshalIndent(v.toAny(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (v Value) toAny() any {
	switch v.kind {
	case ValueBool:
		return v.b
	case ValueInt:
		return v.i
	case ValueFloat:
		return v.n
	case ValueString:
		return v.s
	case ValueArray:
		out := make([]any, len(v.arr))
		for i, elem := range v.arr {
			out[i] = elem.toAny()
		}
		return out
	case ValueObject:
		out := make(map[string]any, len(v.obj))
		for k, elem := range v.obj {
			out[k] = elem.toAny()
		}
		return out
	default:
		return nil
	}
}

// DecodeJSON parses JSON into a Value. Integral numbers that fit int64
// decode as Int, everything else as Float.
func DecodeJSON(s string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null(), fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return Null(), errors.New("decode json: trailing data after value")
	}
	return fromAny(raw, 0)
}

func fromAny(raw any, depth int) (Value, error) {
	if depth > maxDepth {
		return Null(), ErrTooDeep
	}
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("decode json number %q: %w", t.String(), err)
		}
		return Float(f), nil
	case []any:
		arr := make([]Value, 0, len(t))
		for _, elem := range t {
			v, err := fromAny(elem, depth+1)
			if err != nil {
				return Null(), err
			}
			arr = append(arr, v)
		}
		return Array(arr...), nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, elem := range t {
			v, err := fromAny(elem, depth+1)
			if err != nil {
				return Null(), err
			}
			obj[k] = v
		}
		return Object(obj), nil
	default:
		return Null(), fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

// Coerce renders a script's final value for transport: the literal "nil" for
// null, "true"/"false" for booleans, canonical decimal for numbers, and the
// raw string for strings. Tables are not coerced; a script returning
// structured data must encode it to a string itself.
func (v Value) Coerce() (string, *RuntimeError) {
	switch v.kind {
	case ValueNull:
		return "nil", nil
	case ValueBool:
		return strconv.FormatBool(v.b), nil
	case ValueInt:
		return strconv.FormatInt(v.i, 10), nil
	case ValueFloat:
		return formatNumber(v.n), nil
	case ValueString:
		return v.s, nil
	default:
		return "", &RuntimeError{
			Kind:       RuntimeTypeError,
			Message:    fmt.Sprintf("script returned a %s; only string, number, boolean or nil results are supported", v.kind),
			Suggestion: "Encode structured results explicitly, e.g. return json_encode(result).",
		}
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Keys returns the sorted key set of an object Value.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
