// Package card simulates the secure element side of Hybrid MOC: container
// storage with tear-safe updates, slot allocation and command dispatch into
// the matcher.
package card

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-ctap/hybridmoc/pkg/cardlink"
	"github.com/go-ctap/hybridmoc/pkg/container"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/matcher"
	"github.com/go-ctap/hybridmoc/pkg/options"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	OpPutContainer = "PutContainer"
	OpRestore      = "Restore"
)

// Capacity is the persistent memory available for containers.
const Capacity = 256 << 10

// TearFunc decides whether the write into slot is interrupted after the
// container body has been stored but before the marker byte is set.
type TearFunc func(slot int) bool

// Card is a simulated card. All methods are safe for concurrent use.
type Card struct {
	ID uuid.UUID

	matcher *matcher.Matcher
	opts    []options.Option
	logger  *slog.Logger
	encMode cbor.EncMode

	mu     sync.Mutex
	mem    []byte
	layout container.Layout
	tear   TearFunc
}

// New returns an unpersonalized card running m.
func New(m *matcher.Matcher, opts ...options.Option) *Card {
	oo := options.NewOptions(opts...)
	id := uuid.New()

	return &Card{
		ID:      id,
		matcher: m,
		opts:    opts,
		logger:  oo.Logger.With("card", id),
		encMode: oo.EncMode,
	}
}

// SimulateTear installs fn as tear hook, nil removes it.
func (c *Card) SimulateTear(fn TearFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tear = fn
}

// Personalized reports whether a configuration container is stored.
func (c *Card) Personalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mem != nil
}

func (c *Card) contp() [][]byte {
	if c.mem == nil {
		return nil
	}
	return [][]byte{c.mem}
}

// GetMeta runs the matcher's metadata query over the stored containers.
func (c *Card) GetMeta() (*container.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.matcher.GetMeta(c.contp())
}

// Match runs the matcher over the stored containers.
func (c *Card) Match(work []byte, verOffs int, withScore bool) (*matcher.MatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mem == nil {
		return nil, hmoctypes.NewError(matcher.OpMatch, hmoctypes.StatusInit, "card not personalized")
	}

	return c.matcher.Match(c.contp(), work, verOffs, withScore)
}

// Erase drops every container.
func (c *Card) Erase() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem = nil
	c.layout = container.Layout{}
	c.logger.Info("card erased")
}

// PutContainer stores a container. The header is peeked from the leading
// bytes: a configuration container personalizes the card, an active finger
// container replaces the active slot with the same finger code or claims an
// unused slot, and an inactive finger container removes that finger.
func (c *Card) PutContainer(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := container.DecodeHeader(b[:min(len(b), hmoctypes.HeaderPeekSize)])
	if err != nil {
		return err
	}
	if !h.Valid {
		c.logger.Warn("container without marker rejected", "hex", hex.EncodeToString(b[:min(len(b), 8)]))
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusParameter, "container marker missing")
	}

	if h.ID == hmoctypes.ConfigID {
		return c.personalize(h, b)
	}
	return c.putFinger(h, b)
}

func (c *Card) personalize(h *container.Header, b []byte) error {
	if c.mem != nil {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusParameter, "card already personalized")
	}
	if !h.Active {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusParameter, "inactive configuration container")
	}

	l := h.Layout.MustGet()
	if l.NumContainers < 2 || l.NumContainers > hmoctypes.MaxContainers {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusParameter, "invalid container count %d", l.NumContainers)
	}
	if len(b) > int(l.ConfSize) {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusParameter,
			"configuration container is %d bytes, reserved %d", len(b), l.ConfSize)
	}

	total := int(l.ConfSize) + int(l.NumContainers-1)*int(l.FingerSize)
	if total > Capacity {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusMemory, "containers need %d bytes, card holds %d", total, Capacity)
	}

	mem := make([]byte, total)
	if err := c.write(mem[:l.ConfSize], 0, b); err != nil {
		return err
	}

	// Only enable the set once the matcher accepts it.
	if _, err := c.matcher.GetMeta([][]byte{mem}); err != nil {
		c.logger.Warn("configuration rejected by matcher", "error", err)
		return err
	}

	c.mem = mem
	c.layout = l
	c.logger.Info("card personalized",
		"magic", l.LibMagic,
		"containers", l.NumContainers,
		"confSize", l.ConfSize,
		"fingerSize", l.FingerSize,
	)

	return nil
}

func (c *Card) slot(i int) []byte {
	start := int(c.layout.ConfSize) + (i-1)*int(c.layout.FingerSize)
	return c.mem[start : start+int(c.layout.FingerSize)]
}

func (c *Card) putFinger(h *container.Header, b []byte) error {
	if c.mem == nil {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusInit, "card not personalized")
	}
	if !h.ID.Valid() {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusParameter, "invalid finger code %d", h.ID)
	}
	if len(b) > int(c.layout.FingerSize) {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusBuffer,
			"finger container is %d bytes, slots hold %d", len(b), c.layout.FingerSize)
	}

	set := container.NewSet(c.layout, (*storage)(c))
	entries, err := set.Fingers()
	if err != nil {
		return err
	}

	target := 0
	for _, e := range entries {
		if e.Code == h.ID {
			target = e.Slot
			break
		}
	}

	if !h.Active {
		if target == 0 {
			c.logger.Debug("removal of finger not enrolled", "finger", h.ID)
			return nil
		}
		if err := c.write(c.slot(target), target, b); err != nil {
			return err
		}
		c.logger.Info("finger removed", "finger", h.ID, "slot", target)
		return nil
	}

	if _, err := container.ParseFinger(b); err != nil {
		return err
	}

	if target == 0 {
		for i := 1; i < int(c.layout.NumContainers); i++ {
			if !lo.ContainsBy(entries, func(e container.Entry) bool { return e.Slot == i }) {
				target = i
				break
			}
		}
	}
	if target == 0 {
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusMemory, "no unused finger container")
	}

	if err := c.write(c.slot(target), target, b); err != nil {
		return err
	}
	c.logger.Info("finger enrolled", "finger", h.ID, "slot", target, "size", len(b))

	return nil
}

// write stores b into dst with the marker byte cleared, then sets the
// marker. A torn write leaves dst without a marker.
func (c *Card) write(dst []byte, slot int, b []byte) error {
	dst[0] = 0x00
	copy(dst[1:], b[1:])
	clear(dst[len(b):])

	if c.tear != nil && c.tear(slot) {
		c.logger.Warn("container write torn", "slot", slot)
		return hmoctypes.NewError(OpPutContainer, hmoctypes.StatusWritePersistent, "write to slot %d torn", slot)
	}

	dst[0] = b[0]
	return nil
}

// storage exposes the card memory as a container accessor. The card lock
// must be held.
type storage Card

func (s *storage) Len() int {
	return int(s.layout.NumContainers)
}

func (s *storage) Slot(i int) ([]byte, error) {
	if i < 0 || i >= s.Len() {
		return nil, hmoctypes.NewError(container.OpOpen, hmoctypes.StatusParameter, "slot %d out of range", i)
	}
	if i == 0 {
		return s.mem[:s.layout.ConfSize], nil
	}
	return (*Card)(s).slot(i), nil
}

// Serve answers card link requests on rw.
func (c *Card) Serve(ctx context.Context, rw io.ReadWriter) error {
	return cardlink.Serve(ctx, rw, c, c.opts...)
}

// Handle implements cardlink.Handler.
func (c *Card) Handle(ins cardlink.Instruction, data []byte) (hmoctypes.Status, []byte) {
	switch ins {
	case cardlink.InsGetMeta:
		md, err := c.GetMeta()
		if md == nil {
			return hmoctypes.StatusOf(err), nil
		}
		return hmoctypes.StatusOf(err), md.Bytes()
	case cardlink.InsPutContainer:
		return hmoctypes.StatusOf(c.PutContainer(data)), nil
	case cardlink.InsMatch:
		req, err := cardlink.DecodeMatchRequest(data)
		if err != nil {
			return hmoctypes.StatusOf(err), nil
		}
		res, err := c.Match(req.Work, int(req.VerOffs), req.WithScore)
		if err != nil {
			return hmoctypes.StatusOf(err), nil
		}
		return hmoctypes.StatusOK, cardlink.EncodeMatchResponse(res)
	case cardlink.InsErase:
		c.Erase()
		return hmoctypes.StatusOK, nil
	default:
		return hmoctypes.StatusParameter, nil
	}
}
