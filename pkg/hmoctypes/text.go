package hmoctypes

import (
	"fmt"
	"strconv"
)

func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Model) UnmarshalText(b []byte) error {
	v, ok := ParseModel(string(b))
	if !ok {
		return fmt.Errorf("hmoc: unknown model %q", b)
	}
	*m = v
	return nil
}

func (f FAR) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FAR) UnmarshalText(b []byte) error {
	v, ok := ParseFAR(string(b))
	if !ok {
		return fmt.Errorf("hmoc: unknown FAR level %q", b)
	}
	*f = v
	return nil
}

func (m Magic) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts decimal or 0x prefixed hexadecimal magic numbers.
func (m *Magic) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 0, 16)
	if err != nil {
		return fmt.Errorf("hmoc: invalid library magic %q: %w", b, err)
	}
	*m = Magic(v)
	return nil
}
