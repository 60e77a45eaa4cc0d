package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestNumber_IntFloatSplit(t *testing.T) {
	assert.Equal(t, ValueInt, Number(42).Kind())
	assert.Equal(t, int64(42), Number(42).Int())
	assert.Equal(t, ValueFloat, Number(3.5).Kind())
	assert.Equal(t, ValueInt, Number(-7).Kind())
	// Beyond the int64-exact float range, stay float.
	assert.Equal(t, ValueFloat, Number(1e18).Kind())
}

func TestFromLua_Scalars(t *testing.T) {
	l := lua.NewState()
	defer l.Close()

	v, err := FromLua(lua.LNil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = FromLua(lua.LBool(true))
	require.NoError(t, err)
	assert.Equal(t, ValueBool, v.Kind())
	assert.True(t, v.Bool())

	v, err = FromLua(lua.LNumber(7))
	require.NoError(t, err)
	assert.Equal(t, ValueInt, v.Kind())

	v, err = FromLua(lua.LString("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Str())
}

func TestFromLua_ArrayVsObject(t *testing.T) {
	l := lua.NewState()
	defer l.Close()

	arr := l.NewTable()
	arr.RawSetInt(1, lua.LString("a"))
	arr.RawSetInt(2, lua.LString("b"))
	v, err := FromLua(arr)
	require.NoError(t, err)
	require.Equal(t, ValueArray, v.Kind())
	assert.Equal(t, "a", v.Array()[0].Str())

	obj := l.NewTable()
	obj.RawSetString("name", lua.LString("ada"))
	obj.RawSetInt(1, lua.LNumber(1))
	v, err = FromLua(obj)
	require.NoError(t, err)
	require.Equal(t, ValueObject, v.Kind())
	assert.Equal(t, "ada", v.Object()["name"].Str())

	// Holes break arrayness: keys {1,3} become an object.
	holes := l.NewTable()
	holes.RawSetInt(1, lua.LString("a"))
	holes.RawSetInt(3, lua.LString("c"))
	v, err = FromLua(holes)
	require.NoError(t, err)
	assert.Equal(t, ValueObject, v.Kind())

	// Empty table is an object, not an array.
	v, err = FromLua(l.NewTable())
	require.NoError(t, err)
	assert.Equal(t, ValueObject, v.Kind())
}

func TestFromLua_RejectsFunction(t *testing.T) {
	l := lua.NewState()
	defer l.Close()
	fn := l.NewFunction(func(*lua.LState) int { return 0 })
	_, err := FromLua(fn)
	require.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestToLua_RoundTrip(t *testing.T) {
	l := lua.NewState()
	defer l.Close()

	in := Object(map[string]Value{
		"name":  String("ada"),
		"age":   Int(36),
		"score": Float(9.5),
		"tags":  Array(String("x"), String("y")),
		"ok":    Bool(true),
	})
	out, err := FromLua(ToLua(l, in))
	require.NoError(t, err)
	require.Equal(t, ValueObject, out.Kind())
	assert.Equal(t, int64(36), out.Object()["age"].Int())
	assert.Equal(t, 9.5, out.Object()["score"].Float())
	require.Equal(t, ValueArray, out.Object()["tags"].Kind())
	assert.Equal(t, "y", out.Object()["tags"].Array()[1].Str())
}

func TestJSON_EncodeDecode(t *testing.T) {
	v, err := DecodeJSON(`{"a": 1, "b": [true, null, 2.5], "c": "x"}`)
	require.NoError(t, err)
	require.Equal(t, ValueObject, v.Kind())
	assert.Equal(t, ValueInt, v.Object()["a"].Kind())
	assert.Equal(t, int64(1), v.Object()["a"].Int())
	b := v.Object()["b"]
	require.Equal(t, ValueArray, b.Kind())
	assert.True(t, b.Array()[0].Bool())
	assert.True(t, b.Array()[1].IsNull())
	assert.Equal(t, 2.5, b.Array()[2].Float())

	enc, err := v.EncodeJSON()
	require.NoError(t, err)
	back, err := DecodeJSON(enc)
	require.NoError(t, err)
	assert.Equal(t, v.Keys(), back.Keys())
}

func TestJSON_DecodeErrors(t *testing.T) {
	_, err := DecodeJSON("{not json")
	require.Error(t, err)
	_, err = DecodeJSON(`{"a":1} trailing`)
	require.Error(t, err)
}

func TestCoerce(t *testing.T) {
	s, rerr := Null().Coerce()
	require.Nil(t, rerr)
	assert.Equal(t, "nil", s)

	s, rerr = Bool(true).Coerce()
	require.Nil(t, rerr)
	assert.Equal(t, "true", s)

	s, rerr = Int(42).Coerce()
	require.Nil(t, rerr)
	assert.Equal(t, "42", s)

	s, rerr = Float(2.5).Coerce()
	require.Nil(t, rerr)
	assert.Equal(t, "2.5", s)

	s, rerr = String("plain").Coerce()
	require.Nil(t, rerr)
	assert.Equal(t, "plain", s)
}

func TestCoerce_TablesAreRejected(t *testing.T) {
	_, rerr := Array(Int(1), Int(2)).Coerce()
	require.NotNil(t, rerr)
	assert.Equal(t, RuntimeTypeError, rerr.Kind)
	assert.Contains(t, rerr.Suggestion, "json_encode")

	_, rerr = Object(map[string]Value{"a": Int(1)}).Coerce()
	require.NotNil(t, rerr)
	assert.Equal(t, RuntimeTypeError, rerr.Kind)
}
