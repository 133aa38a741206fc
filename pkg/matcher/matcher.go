// Package matcher implements the card side of Hybrid MOC: reporting
// metadata about a container set and matching a verification envelope
// against the enrolled fingers.
//
// A Matcher keeps no state between calls. Containers and the work buffer
// are only read.
package matcher

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-ctap/hybridmoc/pkg/container"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/options"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

const (
	OpGetMeta       = "GetMeta"
	OpMatch         = "Match"
	OpParseEnvelope = "ParseEnvelope"
)

var ErrNoComparator = errors.New("matcher: no comparator")

// Metadata is the matcher's public state, see container.Metadata.
type Metadata = container.Metadata

// MatchResult is the outcome of a successful match call. Decision is 0 when
// no finger was accepted. Score is only present when requested.
type MatchResult struct {
	Decision hmoctypes.FingerCode
	Score    mo.Option[uint16]
}

// Matched reports whether a finger was accepted.
func (r *MatchResult) Matched() bool {
	return r.Decision != 0
}

type Matcher struct {
	magic  hmoctypes.Magic
	cmp    Comparator
	logger *slog.Logger
}

// New returns a matcher for the library variant identified by magic.
func New(magic hmoctypes.Magic, cmp Comparator, opts ...options.Option) (*Matcher, error) {
	if !magic.Supported() {
		return nil, hmoctypes.NewError("New", hmoctypes.StatusSupport, "unsupported library magic %s", magic)
	}
	if cmp == nil {
		return nil, ErrNoComparator
	}

	oo := options.NewOptions(opts...)

	return &Matcher{
		magic:  magic,
		cmp:    cmp,
		logger: oo.Logger,
	}, nil
}

func (m *Matcher) Magic() hmoctypes.Magic {
	return m.magic
}

// open opens and validates a container set for this library variant.
func (m *Matcher) open(op string, contp [][]byte) (*container.Set, error) {
	set, err := container.Open(contp)
	if err != nil {
		return nil, err
	}

	if set.Layout.LibMagic != m.magic {
		m.logger.Warn("configuration for another library variant",
			"op", op,
			"library", m.magic,
			"configured", set.Layout.LibMagic,
		)
		return nil, hmoctypes.NewError(op, hmoctypes.StatusVersion,
			"configuration is for library %s, running %s", set.Layout.LibMagic, m.magic)
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}

	return set, nil
}

// GetMeta reports the library magic, the configured layout and the active
// fingers. Without containers only the magic is reported. When the
// configuration belongs to another library variant the returned metadata
// still carries the own magic, together with a version error.
func (m *Matcher) GetMeta(contp [][]byte) (*Metadata, error) {
	md := &Metadata{Layout: container.Layout{LibMagic: m.magic}}
	if len(contp) == 0 {
		return md, nil
	}

	set, err := m.open(OpGetMeta, contp)
	if err != nil {
		if hmoctypes.StatusOf(err) == hmoctypes.StatusVersion {
			return md, err
		}
		return nil, err
	}

	cfg, err := set.Config()
	if err != nil {
		return nil, err
	}

	mask, err := set.FingerMask()
	if err != nil {
		return nil, err
	}

	return &Metadata{
		Code:       cfg.Code,
		Layout:     set.Layout,
		FingerMask: mask,
	}, nil
}

type candidate struct {
	code hmoctypes.FingerCode
	subs [][]byte
}

// Match compares the verification envelope at verOffs in work against the
// active fingers selected by the envelope's finger mask.
//
// Without withScore the first comparison reaching the threshold accepts its
// finger and ends the call. With withScore every candidate sub-template is
// compared and the best score is reported; the best finger is accepted when
// its score reaches the threshold.
func (m *Matcher) Match(contp [][]byte, work []byte, verOffs int, withScore bool) (*MatchResult, error) {
	if len(contp) == 0 {
		return nil, hmoctypes.NewError(OpMatch, hmoctypes.StatusParameter, "no containers")
	}

	set, err := m.open(OpMatch, contp)
	if err != nil {
		return nil, err
	}

	cfg, err := set.Config()
	if err != nil {
		return nil, err
	}

	env, err := ParseEnvelope(work, verOffs)
	if err != nil {
		m.logger.Warn("rejected verification envelope", "error", err)
		return nil, err
	}

	if ws, ok := m.cmp.(WorkSizer); ok {
		if need, have := ws.WorkSize(cfg), len(work)-env.Len; have < need {
			return nil, hmoctypes.NewError(OpMatch, hmoctypes.StatusBuffer,
				"work buffer leaves %d scratch bytes, comparator needs %d", have, need)
		}
	}

	cands, err := m.candidates(set, cfg, env.FingerMask)
	if err != nil {
		return nil, err
	}

	threshold, err := m.cmp.Threshold(cfg)
	if err != nil {
		return nil, fmt.Errorf("matcher: threshold for %s: %w", cfg.FAR, err)
	}

	var res *MatchResult
	if withScore {
		res, err = m.matchFull(cfg, cands, env.Template, threshold)
	} else {
		res, err = m.matchQuick(cfg, cands, env.Template, threshold)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Debug("match",
		"candidates", hmoctypes.MaskOf(lo.Map(cands, func(c candidate, _ int) hmoctypes.FingerCode { return c.code })...),
		"decision", res.Decision,
		"full", withScore,
	)

	return res, nil
}

// candidates returns the active fingers selected by mask with their
// sub-templates, capped by the configured verlimit.
func (m *Matcher) candidates(set *container.Set, cfg *container.Config, mask mo.Option[hmoctypes.FingerMask]) ([]candidate, error) {
	entries, err := set.Fingers()
	if err != nil {
		return nil, err
	}

	if sel, ok := mask.Get(); ok {
		entries = lo.Filter(entries, func(e container.Entry, _ int) bool {
			return sel.Has(e.Code)
		})
	}

	cands := make([]candidate, 0, len(entries))
	for _, e := range entries {
		f, err := container.ParseFinger(e.Container)
		if err != nil {
			return nil, err
		}

		subs := f.SubTemplates
		if cfg.Verlimit != 0 && len(subs) > int(cfg.Verlimit) {
			subs = subs[:cfg.Verlimit]
		}
		cands = append(cands, candidate{code: e.Code, subs: subs})
	}

	return cands, nil
}

// matchQuick visits the first sub-template of every candidate, then the
// second, and so on, and stops at the first accept.
func (m *Matcher) matchQuick(cfg *container.Config, cands []candidate, probe []byte, threshold uint16) (*MatchResult, error) {
	for round := 0; ; round++ {
		visited := false
		for _, c := range cands {
			if round >= len(c.subs) {
				continue
			}
			visited = true

			score, err := m.cmp.Compare(cfg, c.subs[round], probe)
			if err != nil {
				return nil, fmt.Errorf("matcher: compare finger %d: %w", c.code, err)
			}
			if score >= threshold {
				return &MatchResult{Decision: c.code}, nil
			}
		}
		if !visited {
			return &MatchResult{}, nil
		}
	}
}

// matchFull compares every candidate sub-template and keeps the best score.
// Ties keep the earlier finger.
func (m *Matcher) matchFull(cfg *container.Config, cands []candidate, probe []byte, threshold uint16) (*MatchResult, error) {
	var (
		best     uint16
		bestCode hmoctypes.FingerCode
	)
	for _, c := range cands {
		for _, sub := range c.subs {
			score, err := m.cmp.Compare(cfg, sub, probe)
			if err != nil {
				return nil, fmt.Errorf("matcher: compare finger %d: %w", c.code, err)
			}
			if bestCode == 0 || score > best {
				best, bestCode = score, c.code
			}
		}
	}

	res := &MatchResult{Score: mo.Some(best)}
	if bestCode != 0 && best >= threshold {
		res.Decision = bestCode
	}

	return res, nil
}
