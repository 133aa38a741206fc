package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CopiesData(t *testing.T) {
	data := []byte{1, 2, 3}
	tmpl := New(TypeEHM, data)
	data[0] = 9

	assert.Equal(t, []byte{1, 2, 3}, tmpl.Data())
	assert.False(t, tmpl.MemRef())
	assert.True(t, tmpl.MRConst())
	assert.Equal(t, int32(1), tmpl.Refs())
}

func TestVirtualTypes(t *testing.T) {
	assert.Equal(t, TypeEHM, New(TypeEHMHR, nil).Type())
	assert.Equal(t, TypeEHM, New(TypeEHMV1, nil).Type())
	assert.Equal(t, "EXTERNAL2", Type(193).String())
}

func TestRetainRelease(t *testing.T) {
	released := 0
	data := []byte{4, 5}
	tmpl := NewMemRef(TypeEHM, data, false, func() { released++ })

	assert.True(t, tmpl.MemRef())
	assert.False(t, tmpl.MRConst())
	tmpl.SetMRConst(true)
	assert.True(t, tmpl.MRConst())

	data[0] = 7
	assert.Equal(t, []byte{7, 5}, tmpl.Data())

	tmpl.Retain()
	assert.Equal(t, int32(2), tmpl.Refs())

	tmpl.Release()
	assert.Equal(t, 0, released)
	assert.NotNil(t, tmpl.Data())

	tmpl.Release()
	assert.Equal(t, 1, released)
	assert.Nil(t, tmpl.Data())

	assert.Panics(t, tmpl.Release)

	var nilTmpl *Template
	assert.Nil(t, nilTmpl.Retain())
	nilTmpl.Release()
}

func TestMulti(t *testing.T) {
	a := New(TypeEHM, []byte{1, 1})
	b := New(TypeEHM, []byte{2, 2, 2})

	mt, err := NewMulti(a, b)
	require.NoError(t, err)
	assert.Equal(t, TypeMultiple, mt.Type())

	subs, err := Subtemplates(mt)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, []byte{1, 1}, subs[0].Data())
	assert.Equal(t, []byte{2, 2, 2}, subs[1].Data())
	assert.Equal(t, TypeEHM, subs[1].Type())
	ReleaseAll(subs)

	_, err = NewMulti(mt)
	assert.Error(t, err)
}

func TestSubtemplates_Single(t *testing.T) {
	a := New(TypeEHM, []byte{1})
	subs, err := Subtemplates(a)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Same(t, a, subs[0])
	assert.Equal(t, int32(2), a.Refs())
}

func TestSubtemplates_Corrupt(t *testing.T) {
	_, err := Subtemplates(New(TypeMultiple, []byte{0xff, 0x00}))
	assert.Error(t, err)

	released := New(TypeMultiple, nil)
	released.Release()
	_, err = Subtemplates(released)
	assert.ErrorIs(t, err, ErrReleased)
}
