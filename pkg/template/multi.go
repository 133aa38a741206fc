package template

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode, _ = cbor.CTAP2EncOptions().EncMode()

var ErrNotMulti = errors.New("template: not a multi-template")

type subTemplate struct {
	Type Type   `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

type multiTemplate struct {
	Version  uint          `cbor:"1,keyasint"`
	Elements []subTemplate `cbor:"2,keyasint"`
}

const multiVersion = 1

// NewMulti packs sub-templates into one multi-template. The sub-templates
// are copied and may be released by the caller.
func NewMulti(subs ...*Template) (*Template, error) {
	mt := multiTemplate{
		Version:  multiVersion,
		Elements: make([]subTemplate, 0, len(subs)),
	}
	for _, s := range subs {
		if s.Type() == TypeMultiple {
			return nil, fmt.Errorf("template: nested multi-template %s", s)
		}
		data := s.Data()
		if data == nil {
			return nil, ErrReleased
		}
		mt.Elements = append(mt.Elements, subTemplate{Type: s.Type(), Data: data})
	}

	b, err := encMode.Marshal(mt)
	if err != nil {
		return nil, fmt.Errorf("template: cannot marshal multi-template: %w", err)
	}

	return New(TypeMultiple, b), nil
}

// Subtemplates unpacks t. A template that is not a multi-template yields
// itself, retained.
func Subtemplates(t *Template) ([]*Template, error) {
	if t.Type() != TypeMultiple {
		return []*Template{t.Retain()}, nil
	}

	data := t.Data()
	if data == nil {
		return nil, ErrReleased
	}

	var mt multiTemplate
	if err := cbor.Unmarshal(data, &mt); err != nil {
		return nil, fmt.Errorf("template: cannot unmarshal multi-template: %w", err)
	}
	if mt.Version != multiVersion {
		return nil, fmt.Errorf("template: unsupported multi-template version %d", mt.Version)
	}

	subs := make([]*Template, 0, len(mt.Elements))
	for _, e := range mt.Elements {
		subs = append(subs, New(e.Type, e.Data))
	}

	return subs, nil
}

// ReleaseAll releases every template in ts.
func ReleaseAll(ts []*Template) {
	for _, t := range ts {
		t.Release()
	}
}
