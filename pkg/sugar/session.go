package sugar

import (
	"fmt"
	"log/slog"

	"github.com/go-ctap/hybridmoc/pkg/container"
	"github.com/go-ctap/hybridmoc/pkg/encoder"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/matcher"
	"github.com/go-ctap/hybridmoc/pkg/options"
	"github.com/go-ctap/hybridmoc/pkg/template"
)

// Card is the host view of a card, implemented by cardlink.Client and
// device.Device.
type Card interface {
	GetMeta() (*container.Metadata, error)
	PutContainer(b []byte) error
	Match(work []byte, verOffs uint16, withScore bool) (*matcher.MatchResult, error)
	Erase() error
}

// Profile is the use-case configuration written to a card at
// personalization.
type Profile struct {
	Model         hmoctypes.Model `toml:"model"`
	NumContainers uint16          `toml:"containers"`
	ConfSize      uint16          `toml:"conf_size"`
	FingerSize    uint16          `toml:"finger_size"`
	FAR           hmoctypes.FAR   `toml:"far"`
	Full360       bool            `toml:"full_360"`
	Verlimit      uint8           `toml:"verlimit"`
}

func (p *Profile) features() hmoctypes.Feature {
	if p.Full360 {
		return hmoctypes.Feat360
	}
	return 0
}

// Session runs host flows against one card, encoding for the library
// variant the card reports.
type Session struct {
	card   Card
	enc    *encoder.Encoder
	meta   *container.Metadata
	logger *slog.Logger
}

// NewSession queries the card's metadata. A card configured for another
// library variant is rejected.
func NewSession(card Card, enc *encoder.Encoder, opts ...options.Option) (*Session, error) {
	oo := options.NewOptions(opts...)

	s := &Session{
		card:   card,
		enc:    enc,
		logger: oo.Logger,
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Session) refresh() error {
	md, err := s.card.GetMeta()
	if err != nil {
		return fmt.Errorf("sugar: cannot read card metadata: %w", err)
	}
	s.meta = md
	return nil
}

func (s *Session) Magic() hmoctypes.Magic {
	return s.meta.Layout.LibMagic
}

func (s *Session) Metadata() *container.Metadata {
	return s.meta
}

func (s *Session) Personalized() bool {
	return s.meta.Layout.NumContainers != 0
}

// Personalize writes the configuration container for p.
func (s *Session) Personalize(p Profile) error {
	conf, err := s.enc.EncodeConf(s.Magic(), p.Model, p.NumContainers, p.ConfSize, p.FingerSize, p.FAR, p.features(), uint32(p.Verlimit))
	if err != nil {
		return err
	}
	defer conf.Release()

	if err := s.card.PutContainer(conf.Data()); err != nil {
		return fmt.Errorf("sugar: personalization failed: %w", err)
	}
	s.logger.Info("card personalized", "magic", s.Magic(), "model", p.Model, "far", p.FAR)

	return s.refresh()
}

// EnrollFinger stores tmpl as finger code, dropping sub-templates that do
// not fit the card's finger containers. It returns the number of
// sub-templates stored.
func (s *Session) EnrollFinger(code hmoctypes.FingerCode, tmpl *template.Template) (int, error) {
	c, n, err := s.enc.EncodeEnr(s.Magic(), tmpl, code, s.meta.Layout.FingerSize)
	if err != nil {
		return 0, err
	}
	defer c.Release()

	if err := s.card.PutContainer(c.Data()); err != nil {
		return 0, fmt.Errorf("sugar: enrollment of finger %d failed: %w", code, err)
	}
	s.logger.Info("finger enrolled", "finger", code, "subTemplates", n)

	return n, s.refresh()
}

func (s *Session) RemoveFinger(code hmoctypes.FingerCode) error {
	c, err := s.enc.EncodeRemoval(s.Magic(), code)
	if err != nil {
		return err
	}
	defer c.Release()

	if err := s.card.PutContainer(c.Data()); err != nil {
		return fmt.Errorf("sugar: removal of finger %d failed: %w", code, err)
	}
	s.logger.Info("finger removed", "finger", code)

	return s.refresh()
}

// Verify matches probe against the given fingers, all enrolled fingers when
// none are given. It returns the accepted finger code, 0 for no match.
func (s *Session) Verify(probe *template.Template, fingers ...hmoctypes.FingerCode) (hmoctypes.FingerCode, error) {
	v, err := s.enc.EncodeVer(s.Magic(), probe, hmoctypes.MaskOf(fingers...))
	if err != nil {
		return 0, err
	}
	defer v.Release()

	res, err := s.card.Match(v.Data(), 0, false)
	if err != nil {
		return 0, fmt.Errorf("sugar: verification failed: %w", err)
	}

	return res.Decision, nil
}

// Score matches probe without early exit and reports the best score.
func (s *Session) Score(probe *template.Template) (*matcher.MatchResult, error) {
	v, err := s.enc.EncodeVer(s.Magic(), probe, 0)
	if err != nil {
		return nil, err
	}
	defer v.Release()

	return s.card.Match(v.Data(), 0, true)
}

func (s *Session) EnrolledFingers() []hmoctypes.FingerCode {
	return s.meta.FingerMask.Codes()
}

// Reset erases the card.
func (s *Session) Reset() error {
	if err := s.card.Erase(); err != nil {
		return err
	}
	return s.refresh()
}
