package cardlink

import (
	"encoding/hex"
	"io"
	"log/slog"
	"sync"

	"github.com/go-ctap/hybridmoc/pkg/container"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/matcher"
	"github.com/go-ctap/hybridmoc/pkg/options"
)

// Client is the host end of a card link. Calls are serialized.
type Client struct {
	rw     io.ReadWriter
	size   int
	logger *slog.Logger
	mu     sync.Mutex
}

func NewClient(rw io.ReadWriter, opts ...options.Option) *Client {
	oo := options.NewOptions(opts...)

	return &Client{
		rw:     rw,
		size:   oo.ReportSize,
		logger: oo.Logger,
	}
}

// Transmit sends one request and returns the response payload without the
// status byte. A non-OK status is returned as a *hmoctypes.StatusError
// together with whatever payload the card sent.
func (c *Client) Transmit(ins Instruction, data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := NewMessage(ins, data, c.size)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("cardlink request", "ins", ins, "hex", hex.EncodeToString(data))

	if _, err := msg.WriteTo(c.rw); err != nil {
		return nil, err
	}

	for {
		resp, err := ReadMessage(c.rw, c.size)
		if err != nil {
			return nil, err
		}

		p := resp.Payload()
		switch resp.Instruction() {
		case ins:
		case InsKeepalive:
			continue
		case InsError:
			if len(p) < 1 {
				return nil, ErrInvalidResponseMessage
			}
			return nil, LinkError(p[0])
		default:
			return nil, ErrUnexpectedInstruction
		}

		if len(p) < 1 {
			return nil, ErrInvalidResponseMessage
		}

		c.logger.Debug("cardlink response", "ins", ins, "status", hmoctypes.Status(p[0]), "hex", hex.EncodeToString(p[1:]))

		return p[1:], hmoctypes.ErrorOf(ins.String(), hmoctypes.Status(p[0]))
	}
}

// GetMeta reads the card's metadata. On a version error the metadata still
// reports the card's library magic.
func (c *Client) GetMeta() (*container.Metadata, error) {
	p, err := c.Transmit(InsGetMeta, nil)
	if len(p) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, ErrInvalidResponseMessage
	}

	md, perr := container.ParseMetadata(p)
	if perr != nil {
		return nil, perr
	}

	return md, err
}

// PutContainer stores a configuration or finger container on the card.
func (c *Client) PutContainer(b []byte) error {
	_, err := c.Transmit(InsPutContainer, b)
	return err
}

// Match sends a work buffer holding a verification envelope at verOffs.
func (c *Client) Match(work []byte, verOffs uint16, withScore bool) (*matcher.MatchResult, error) {
	p, err := c.Transmit(InsMatch, EncodeMatchRequest(work, verOffs, withScore))
	if err != nil {
		return nil, err
	}

	return DecodeMatchResponse(p)
}

// Erase wipes all containers, returning the card to its unpersonalized state.
func (c *Client) Erase() error {
	_, err := c.Transmit(InsErase, nil)
	return err
}
