package card

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/go-ctap/hybridmoc/pkg/container"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/google/uuid"
)

type snapshot struct {
	ID     uuid.UUID `cbor:"1,keyasint"`
	Memory []byte    `cbor:"2,keyasint,omitempty"`
}

// Snapshot serializes the card identity and its container memory.
func (c *Card) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.encMode.Marshal(snapshot{ID: c.ID, Memory: c.mem})
}

// Restore replaces the card state with a snapshot. The stored containers
// must be accepted by the card's matcher.
func (c *Card) Restore(b []byte) error {
	var s snapshot
	if err := cbor.Unmarshal(b, &s); err != nil {
		return hmoctypes.NewError(OpRestore, hmoctypes.StatusData, "%v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(s.Memory) == 0 {
		c.ID, c.mem, c.layout = s.ID, nil, container.Layout{}
		return nil
	}

	set, err := container.Open([][]byte{s.Memory})
	if err != nil {
		return err
	}
	l := set.Layout
	if total := int(l.ConfSize) + int(l.NumContainers-1)*int(l.FingerSize); l.NumContainers < 2 || total != len(s.Memory) {
		return hmoctypes.NewError(OpRestore, hmoctypes.StatusData, "snapshot holds %d bytes, layout needs %d", len(s.Memory), total)
	}
	if _, err := c.matcher.GetMeta([][]byte{s.Memory}); err != nil {
		return err
	}

	c.ID, c.mem, c.layout = s.ID, s.Memory, l
	c.logger.Info("card restored", "id", s.ID, "magic", l.LibMagic)

	return nil
}
