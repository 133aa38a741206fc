// Package template holds the rich-host template objects that the encoder
// converts into card containers.
package template

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Type is the template format.
type Type byte

const (
	TypeUnknown          Type = 0
	TypeISO              Type = 1
	TypeISOCompactCard   Type = 2
	TypeANSI             Type = 3
	TypeSpectral         Type = 66
	TypeEHM              Type = 67
	TypeEHMV1            Type = 73
	TypeEHMHR            Type = 74
	TypeHMOC             Type = 76
	TypeMultiple         Type = 80
	TypeGeneric          Type = 84
	TypeExternalFirst    Type = 192
	TypeExternalLast     Type = 195
	typeApplicationFirst Type = 196
)

var typeNames = map[Type]string{
	TypeUnknown:        "unknown",
	TypeISO:            "ISO",
	TypeISOCompactCard: "ISO_COMPACTCARD",
	TypeANSI:           "ANSI",
	TypeSpectral:       "PB_SPECTRAL",
	TypeEHM:            "PB_EHM",
	TypeEHMV1:          "PB_EHM_V1",
	TypeEHMHR:          "PB_EHM_HR",
	TypeHMOC:           "PB_HMOC",
	TypeMultiple:       "PB_MULTIPLE",
	TypeGeneric:        "PB_GENERIC",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	if t >= TypeExternalFirst {
		return "EXTERNAL" + strconv.Itoa(int(t-TypeExternalFirst)+1)
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Base resolves virtual types to the type of the data actually produced.
// EHM v1 and EHM HR are both carried as EHM.
func (t Type) Base() Type {
	switch t {
	case TypeEHMV1, TypeEHMHR:
		return TypeEHM
	default:
		return t
	}
}

var ErrReleased = errors.New("template: use after release")

// Template is a reference counted template object. New objects start with
// one reference; every Retain must be paired with a Release.
//
// Objects created with NewMemRef reference caller memory instead of a copy.
// Unless MRConst is set such objects may be modified in place by decoders and
// must not be shared between goroutines.
type Template struct {
	id      uuid.UUID
	typ     Type
	data    []byte
	refs    atomic.Int32
	memRef  bool
	mrConst atomic.Bool
	release func()
}

// New creates a template holding a copy of data.
func New(typ Type, data []byte) *Template {
	t := &Template{
		id:   uuid.New(),
		typ:  typ.Base(),
		data: append([]byte(nil), data...),
	}
	t.refs.Store(1)
	return t
}

// NewMemRef creates a template referencing data directly. data must stay
// valid until the last reference is released, at which point release, if
// not nil, is called.
func NewMemRef(typ Type, data []byte, mrConst bool, release func()) *Template {
	t := &Template{
		id:      uuid.New(),
		typ:     typ.Base(),
		data:    data,
		memRef:  true,
		release: release,
	}
	t.mrConst.Store(mrConst)
	t.refs.Store(1)
	return t
}

func (t *Template) ID() uuid.UUID {
	return t.id
}

func (t *Template) Type() Type {
	return t.typ
}

// Data returns the template bytes, nil once the last reference is gone.
func (t *Template) Data() []byte {
	if t.refs.Load() <= 0 {
		return nil
	}
	return t.data
}

func (t *Template) Len() int {
	return len(t.Data())
}

// MemRef reports whether the template references caller memory.
func (t *Template) MemRef() bool {
	return t.memRef
}

// MRConst reports whether referenced memory must be treated as read-only.
func (t *Template) MRConst() bool {
	return !t.memRef || t.mrConst.Load()
}

// SetMRConst changes the read-only property of a memory-reference template.
func (t *Template) SetMRConst(v bool) {
	t.mrConst.Store(v)
}

// Retain adds a reference. Retaining nil is a no-op.
func (t *Template) Retain() *Template {
	if t == nil {
		return nil
	}
	t.refs.Add(1)
	return t
}

// Release drops a reference. Releasing nil is a no-op.
func (t *Template) Release() {
	if t == nil {
		return
	}

	switch n := t.refs.Add(-1); {
	case n == 0:
		if t.release != nil {
			t.release()
		}
		t.data = nil
	case n < 0:
		panic(ErrReleased)
	}
}

// Refs returns the current reference count.
func (t *Template) Refs() int32 {
	return t.refs.Load()
}

func (t *Template) String() string {
	return t.typ.String() + "/" + t.id.String()
}
