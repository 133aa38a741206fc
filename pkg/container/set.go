package container

import (
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/samber/lo"
)

// Accessor addresses the slots of a container set. Slot 0 is always the
// configuration container.
type Accessor interface {
	Len() int
	Slot(i int) ([]byte, error)
}

// contiguous locates slots at fixed offsets inside one allocation.
type contiguous struct {
	base   []byte
	layout Layout
}

func (c *contiguous) Len() int {
	return int(c.layout.NumContainers)
}

func (c *contiguous) Slot(i int) ([]byte, error) {
	if i < 0 || i >= c.Len() {
		return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "slot %d out of range", i)
	}

	start, size := 0, int(c.layout.ConfSize)
	if i > 0 {
		start = int(c.layout.ConfSize) + (i-1)*int(c.layout.FingerSize)
		size = int(c.layout.FingerSize)
	}
	if start+size > len(c.base) {
		return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusBuffer,
			"slot %d ends at %d, allocation holds %d bytes", i, start+size, len(c.base))
	}

	return c.base[start : start+size : start+size], nil
}

// indexed addresses every slot through its own pointer.
type indexed struct {
	slots [][]byte
}

func (x *indexed) Len() int {
	return len(x.slots)
}

func (x *indexed) Slot(i int) ([]byte, error) {
	if i < 0 || i >= len(x.slots) {
		return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "slot %d out of range", i)
	}
	return x.slots[i], nil
}

// Set is an opened container set.
type Set struct {
	Layout Layout
	acc    Accessor
}

// Entry is an active finger container found in a Set.
type Entry struct {
	Slot      int
	Code      hmoctypes.FingerCode
	Container []byte
}

// Open reads the configuration container at contp[0] and selects the
// addressing mode: one pointer means a contiguous allocation laid out by the
// configuration, several pointers address one container each and must match
// the configured container count. The library magic is not checked.
func Open(contp [][]byte) (*Set, error) {
	if len(contp) == 0 {
		return nil, ErrNoContainers
	}

	h, err := DecodeHeader(contp[0])
	if err != nil {
		return nil, err
	}
	if !h.Valid {
		return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "configuration container invalid")
	}
	if h.ID != hmoctypes.ConfigID {
		return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "first container has id %d", h.ID)
	}
	if !h.Active {
		return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "configuration container inactive")
	}

	layout := h.Layout.MustGet()
	s := &Set{Layout: layout}

	if len(contp) == 1 {
		s.acc = &contiguous{base: contp[0], layout: layout}
		return s, nil
	}

	if len(contp) != int(layout.NumContainers) {
		return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter,
			"%d containers supplied, configuration declares %d", len(contp), layout.NumContainers)
	}
	s.acc = &indexed{slots: contp}

	return s, nil
}

// NewSet wraps an existing accessor, e.g. a card's own storage.
func NewSet(layout Layout, acc Accessor) *Set {
	return &Set{Layout: layout, acc: acc}
}

// Validate checks the geometry of the set against the backing memory.
func (s *Set) Validate() error {
	n := int(s.Layout.NumContainers)
	if n < 1 || n > hmoctypes.MaxContainers {
		return hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "invalid container count %d", n)
	}
	if s.acc.Len() != n {
		return hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "accessor holds %d containers, expected %d", s.acc.Len(), n)
	}

	for i := 0; i < n; i++ {
		if _, err := s.acc.Slot(i); err != nil {
			return err
		}
	}

	return nil
}

func (s *Set) Len() int {
	return s.acc.Len()
}

func (s *Set) Slot(i int) ([]byte, error) {
	return s.acc.Slot(i)
}

// Config fully decodes the configuration container.
func (s *Set) Config() (*Config, error) {
	b, err := s.acc.Slot(0)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseConfig(b)
	if err != nil {
		return nil, err
	}
	if cfg.Size > int(s.Layout.ConfSize) {
		return nil, hmoctypes.NewError(OpParseConfig, hmoctypes.StatusParameter,
			"configuration container is %d bytes, reserved %d", cfg.Size, s.Layout.ConfSize)
	}

	return cfg, nil
}

// Fingers decodes the header of every finger slot and returns the active
// ones. Slots without a marker byte are skipped. Active containers must carry
// unique finger codes in 1-10.
func (s *Set) Fingers() ([]Entry, error) {
	var entries []Entry
	for i := 1; i < s.acc.Len(); i++ {
		b, err := s.acc.Slot(i)
		if err != nil {
			return nil, err
		}

		h, err := DecodeHeader(b)
		if err != nil {
			return nil, err
		}
		if !h.Valid || !h.Active {
			continue
		}

		if !h.ID.Valid() {
			return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "slot %d holds active container with id %d", i, h.ID)
		}
		if lo.ContainsBy(entries, func(e Entry) bool { return e.Code == h.ID }) {
			return nil, hmoctypes.NewError(OpOpen, hmoctypes.StatusParameter, "finger %d active in more than one slot", h.ID)
		}

		entries = append(entries, Entry{Slot: i, Code: h.ID, Container: b})
	}

	return entries, nil
}

// FingerMask returns the mask of active finger codes.
func (s *Set) FingerMask() (hmoctypes.FingerMask, error) {
	entries, err := s.Fingers()
	if err != nil {
		return 0, err
	}

	return hmoctypes.MaskOf(lo.Map(entries, func(e Entry, _ int) hmoctypes.FingerCode {
		return e.Code
	})...), nil
}
