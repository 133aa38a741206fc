// Package encoder converts host template objects into Hybrid MOC containers
// and verification envelopes for a given matcher library variant.
package encoder

import (
	"encoding/binary"
	"encoding/hex"
	"log/slog"

	"github.com/go-ctap/hybridmoc/pkg/container"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/options"
	"github.com/go-ctap/hybridmoc/pkg/template"
	"github.com/go-ctap/hybridmoc/pkg/tlv"
	"github.com/samber/lo"
)

const (
	OpEncodeConf     = "EncodeConf"
	OpEncodeEnr      = "EncodeEnr"
	OpEncodeVer      = "EncodeVer"
	OpEncodeRemoval  = "EncodeRemoval"
	OpDecodeMetadata = "DecodeMetadata"
)

const (
	rfuVerlimitMask = 0x000000FF
	maxSubTemplates = 0xFF
)

// Encoder is stateless apart from its logger and preprocessor and may be
// used concurrently.
type Encoder struct {
	logger *slog.Logger
	pre    Preprocessor
}

// New returns an encoder. A nil preprocessor leaves sub-templates untouched.
func New(pre Preprocessor, opts ...options.Option) *Encoder {
	oo := options.NewOptions(opts...)
	if pre == nil {
		pre = Passthrough
	}

	return &Encoder{
		logger: oo.Logger,
		pre:    pre,
	}
}

func checkMagic(op string, magic hmoctypes.Magic) error {
	if !magic.Supported() {
		return hmoctypes.NewError(op, hmoctypes.StatusSupport, "unsupported library magic %s", magic)
	}
	return nil
}

// EncodeConf builds the configuration container. The low byte of rfu is the
// verlimit, the maximum number of sub-templates compared per finger, with 0
// meaning no limit. Zero confSize reserves the encoded size rounded up to 16
// bytes, zero fingerSize reserves DefaultFingerSize.
func (e *Encoder) EncodeConf(
	magic hmoctypes.Magic,
	model hmoctypes.Model,
	numContainers uint16,
	confSize uint16,
	fingerSize uint16,
	far hmoctypes.FAR,
	features hmoctypes.Feature,
	rfu uint32,
) (*template.Template, error) {
	if err := checkMagic(OpEncodeConf, magic); err != nil {
		return nil, err
	}

	switch {
	case numContainers < 2 || numContainers > hmoctypes.MaxContainers:
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusParameter,
			"container count %d outside 2-%d", numContainers, hmoctypes.MaxContainers)
	case !model.Valid():
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusParameter, "invalid model %s", model)
	case !far.Valid():
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusParameter, "invalid FAR level %d", far)
	case rfu&^rfuVerlimitMask != 0:
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusParameter, "reserved bits set: 0x%08X", rfu)
	case features&^hmoctypes.FeaturesSupported != 0:
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusSupport,
			"features 0x%08X not supported", uint32(features&^hmoctypes.FeaturesSupported))
	case confSize > hmoctypes.MaxContainerSize || fingerSize > hmoctypes.MaxContainerSize:
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusParameter,
			"container sizes %d/%d exceed %d", confSize, fingerSize, hmoctypes.MaxContainerSize)
	}

	verlimit := uint8(rfu & rfuVerlimitMask)
	if verlimit != 0 && !magic.SupportsVerlimit() {
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusSupport, "library %s has no verlimit support", magic)
	}

	if fingerSize == 0 {
		fingerSize = DefaultFingerSize(magic, model)
	}

	layout := container.Layout{
		LibMagic:      magic,
		NumContainers: numContainers,
		ConfSize:      confSize,
		FingerSize:    fingerSize,
	}
	code := hmoctypes.NewContainerCode(hmoctypes.ConfigID, true)

	// The encoded size does not depend on the size fields, so the container
	// can be measured before confSize is final.
	b, err := encodeConfig(code, layout, model, far, features, verlimit)
	if err != nil {
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusParameter, "%v", err)
	}

	switch {
	case confSize == 0:
		layout.ConfSize = uint16(hmoctypes.AlignSize(len(b)))
		if b, err = encodeConfig(code, layout, model, far, features, verlimit); err != nil {
			return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusParameter, "%v", err)
		}
	case int(confSize) < len(b):
		return nil, hmoctypes.NewError(OpEncodeConf, hmoctypes.StatusParameter,
			"configuration needs %d bytes, %d reserved", len(b), confSize)
	}

	e.logger.Debug("configuration container",
		"magic", magic,
		"containers", numContainers,
		"confSize", layout.ConfSize,
		"fingerSize", layout.FingerSize,
		"hex", hex.EncodeToString(b),
	)

	return template.New(template.TypeHMOC, b), nil
}

func encodeConfig(
	code hmoctypes.ContainerCode,
	layout container.Layout,
	model hmoctypes.Model,
	far hmoctypes.FAR,
	features hmoctypes.Feature,
	verlimit uint8,
) ([]byte, error) {
	hdr, err := tlv.Encode(hmoctypes.TagHeader, container.AppendHeaderValue(nil, code, layout))
	if err != nil {
		return nil, err
	}

	children := [][]byte{hdr}
	add := func(tag tlv.Tag, v []byte) {
		r, _ := tlv.Encode(tag, v)
		children = append(children, r)
	}

	add(hmoctypes.TagModel, []byte{byte(model)})
	add(hmoctypes.TagFAR, []byte{byte(far)})
	add(hmoctypes.TagFeatures, binary.BigEndian.AppendUint32(nil, uint32(features)))
	if verlimit != 0 {
		add(hmoctypes.TagVerlimit, []byte{verlimit})
	}

	return tlv.Constructed(hmoctypes.TagContainer, children...)
}

// EncodeEnr builds the finger container for fingerCode from an EHM template
// or a multi-template of EHM sub-templates. With a non-zero maxSize trailing
// sub-templates are dropped until the container fits; the number of
// sub-templates kept is returned.
func (e *Encoder) EncodeEnr(
	magic hmoctypes.Magic,
	tmpl *template.Template,
	fingerCode hmoctypes.FingerCode,
	maxSize uint16,
) (*template.Template, int, error) {
	if err := checkMagic(OpEncodeEnr, magic); err != nil {
		return nil, 0, err
	}
	if !fingerCode.Valid() {
		return nil, 0, hmoctypes.NewError(OpEncodeEnr, hmoctypes.StatusParameter, "invalid finger code %d", fingerCode)
	}
	if tmpl == nil {
		return nil, 0, hmoctypes.NewError(OpEncodeEnr, hmoctypes.StatusParameter, "no enrollment template")
	}

	subs, err := template.Subtemplates(tmpl)
	if err != nil {
		return nil, 0, hmoctypes.NewError(OpEncodeEnr, hmoctypes.StatusData, "%v", err)
	}
	defer template.ReleaseAll(subs)

	if len(subs) == 0 || len(subs) > maxSubTemplates {
		return nil, 0, hmoctypes.NewError(OpEncodeEnr, hmoctypes.StatusParameter, "%d sub-templates", len(subs))
	}
	if bad, ok := lo.Find(subs, func(s *template.Template) bool { return s.Type() != template.TypeEHM }); ok {
		return nil, 0, hmoctypes.NewError(OpEncodeEnr, hmoctypes.StatusParameter, "sub-template of type %s", bad.Type())
	}

	payloads := make([][]byte, 0, len(subs))
	for _, s := range subs {
		p, err := e.preprocess(magic, s.Data())
		if err != nil {
			return nil, 0, err
		}
		payloads = append(payloads, p)
	}

	limit := int(maxSize)
	if limit == 0 {
		limit = hmoctypes.MaxContainerSize
	}

	n := len(payloads)
	for n > 0 && fingerContainerSize(payloads[:n]) > limit {
		n--
	}
	if n == 0 {
		return nil, 0, hmoctypes.NewError(OpEncodeEnr, hmoctypes.StatusBuffer,
			"smallest finger container needs %d bytes, limit %d", fingerContainerSize(payloads[:1]), limit)
	}
	if n < len(payloads) {
		e.logger.Debug("sub-templates dropped to fit container", "finger", fingerCode, "kept", n, "total", len(payloads))
	}

	b, err := encodeFinger(hmoctypes.NewContainerCode(fingerCode, true), payloads[:n])
	if err != nil {
		return nil, 0, hmoctypes.NewError(OpEncodeEnr, hmoctypes.StatusParameter, "%v", err)
	}

	e.logger.Debug("finger container", "magic", magic, "finger", fingerCode, "size", len(b))

	return template.New(template.TypeHMOC, b), n, nil
}

func (e *Encoder) preprocess(magic hmoctypes.Magic, p []byte) ([]byte, error) {
	if !magic.HostPreprocessed() {
		return p, nil
	}

	out, err := e.pre.Preprocess(magic, p, magic.MaxMinutiae())
	if err != nil {
		return nil, hmoctypes.NewError(OpEncodeEnr, hmoctypes.StatusData, "preprocessing failed: %v", err)
	}
	return out, nil
}

// Sub-templates a finger container holds by default, per model. Full models
// enroll from one full sized image.
var defaultSubTemplates = map[hmoctypes.Model]int{
	hmoctypes.ModelL:      8,
	hmoctypes.ModelXL:     6,
	hmoctypes.ModelFullL:  2,
	hmoctypes.ModelFullXL: 2,
}

const (
	minutiaSize         = 6
	subTemplateOverhead = 32
)

// DefaultFingerSize is the finger container size for a model: its default
// sub-template count at the variant's minutiae capacity, rounded up to 16
// bytes.
func DefaultFingerSize(magic hmoctypes.Magic, model hmoctypes.Model) uint16 {
	sub := magic.MaxMinutiae()*minutiaSize + subTemplateOverhead
	payloads := lo.Times(defaultSubTemplates[model], func(int) []byte {
		return make([]byte, sub)
	})
	return uint16(hmoctypes.AlignSize(fingerContainerSize(payloads)))
}

func fingerContainerSize(payloads [][]byte) int {
	n := tlv.EncodedLen(hmoctypes.TagHeader, 2)
	for _, p := range payloads {
		n += tlv.EncodedLen(hmoctypes.TagBiometricData, len(p))
	}
	return tlv.EncodedLen(hmoctypes.TagContainer, n)
}

func encodeFinger(code hmoctypes.ContainerCode, payloads [][]byte) ([]byte, error) {
	hdr, err := tlv.Encode(hmoctypes.TagHeader, []byte{byte(code), byte(len(payloads))})
	if err != nil {
		return nil, err
	}

	children := [][]byte{hdr}
	for _, p := range payloads {
		r, err := tlv.Encode(hmoctypes.TagBiometricData, p)
		if err != nil {
			return nil, err
		}
		children = append(children, r)
	}

	return tlv.Constructed(hmoctypes.TagContainer, children...)
}

// EncodeRemoval builds an inactive container for fingerCode. Sending it to
// the card deletes the finger.
func (e *Encoder) EncodeRemoval(magic hmoctypes.Magic, fingerCode hmoctypes.FingerCode) (*template.Template, error) {
	if err := checkMagic(OpEncodeRemoval, magic); err != nil {
		return nil, err
	}
	if !fingerCode.Valid() {
		return nil, hmoctypes.NewError(OpEncodeRemoval, hmoctypes.StatusParameter, "invalid finger code %d", fingerCode)
	}

	b, err := encodeFinger(hmoctypes.NewContainerCode(fingerCode, false), nil)
	if err != nil {
		return nil, hmoctypes.NewError(OpEncodeRemoval, hmoctypes.StatusParameter, "%v", err)
	}

	return template.New(template.TypeHMOC, b), nil
}

// EncodeVer builds the verification envelope for an EHM template. A non-zero
// fingerMask restricts matching to the selected fingers.
func (e *Encoder) EncodeVer(magic hmoctypes.Magic, tmpl *template.Template, fingerMask hmoctypes.FingerMask) (*template.Template, error) {
	if err := checkMagic(OpEncodeVer, magic); err != nil {
		return nil, err
	}
	if tmpl == nil || tmpl.Data() == nil {
		return nil, hmoctypes.NewError(OpEncodeVer, hmoctypes.StatusParameter, "no verification template")
	}
	if tmpl.Type() != template.TypeEHM {
		return nil, hmoctypes.NewError(OpEncodeVer, hmoctypes.StatusParameter, "template of type %s", tmpl.Type())
	}
	if !fingerMask.Valid() {
		return nil, hmoctypes.NewError(OpEncodeVer, hmoctypes.StatusParameter, "invalid finger mask 0x%04X", uint16(fingerMask))
	}

	var (
		b   []byte
		err error
	)
	if fingerMask != 0 {
		b, err = tlv.Append(nil, hmoctypes.TagHeader, binary.BigEndian.AppendUint16(nil, uint16(fingerMask)))
		if err != nil {
			return nil, hmoctypes.NewError(OpEncodeVer, hmoctypes.StatusParameter, "%v", err)
		}
	}
	if b, err = tlv.Append(b, hmoctypes.TagBiometricData, tmpl.Data()); err != nil {
		return nil, hmoctypes.NewError(OpEncodeVer, hmoctypes.StatusParameter, "%v", err)
	}

	e.logger.Debug("verification envelope", "magic", magic, "mask", fingerMask, "size", len(b))

	return template.New(template.TypeHMOC, b), nil
}

// DecodeMetadata decodes the metadata returned by the card.
func (e *Encoder) DecodeMetadata(b []byte) (*container.Metadata, error) {
	md, err := container.ParseMetadata(b)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("metadata",
		"magic", md.Layout.LibMagic,
		"containers", md.Layout.NumContainers,
		"fingers", md.FingerMask,
	)

	return md, nil
}
