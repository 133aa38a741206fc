package device

import (
	"io"
	"log/slog"

	"github.com/go-ctap/hybridmoc/pkg/cardlink"
	"github.com/go-ctap/hybridmoc/pkg/container"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/matcher"
	"github.com/go-ctap/hybridmoc/pkg/options"
)

// Device is a card reader speaking the card link over HID reports.
type Device struct {
	Path   string
	device io.ReadWriteCloser
	client *cardlink.Client
	logger *slog.Logger
}

// New opens the reader at path and checks that a card answers the metadata
// query. A card configured for another library variant still counts as
// answering when it reports its own magic.
func New(path string, opts ...options.Option) (*Device, error) {
	oo := options.NewOptions(opts...)

	dev, err := OpenPath(oo.Context, path)
	if err != nil {
		return nil, newErrorMessage(err, "cannot open "+path)
	}

	d, err := newDevice(path, dev, opts...)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	return d, nil
}

func newDevice(path string, dev io.ReadWriteCloser, opts ...options.Option) (*Device, error) {
	oo := options.NewOptions(opts...)
	d := &Device{
		Path:   path,
		device: dev,
		client: cardlink.NewClient(&reportWriter{rw: dev}, opts...),
		logger: oo.Logger,
	}

	md, err := d.client.GetMeta()
	if err != nil && (md == nil || hmoctypes.StatusOf(err) != hmoctypes.StatusVersion) {
		return nil, newErrorMessage(ErrNoCard, err.Error())
	}
	d.logger.Info("card reader opened", "path", path, "magic", md.Layout.LibMagic, "fingers", md.FingerMask)

	return d, nil
}

// Close closes the underlying HID device.
func (d *Device) Close() error {
	return d.device.Close()
}

func (d *Device) GetMeta() (*container.Metadata, error) {
	return d.client.GetMeta()
}

func (d *Device) PutContainer(b []byte) error {
	return d.client.PutContainer(b)
}

func (d *Device) Match(work []byte, verOffs uint16, withScore bool) (*matcher.MatchResult, error) {
	return d.client.Match(work, verOffs, withScore)
}

func (d *Device) Erase() error {
	return d.client.Erase()
}

// reportWriter prefixes every outgoing report with report ID 0.
type reportWriter struct {
	rw io.ReadWriter
}

func (w *reportWriter) Read(p []byte) (int, error) {
	return w.rw.Read(p)
}

func (w *reportWriter) Write(p []byte) (int, error) {
	// Every write must be a single report.
	n, err := w.rw.Write(append([]byte{0x00}, p...))
	if n > 0 {
		n--
	}
	return n, err
}
