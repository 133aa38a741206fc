package device

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/go-ctap/hybridmoc/pkg/card"
	"github.com/go-ctap/hybridmoc/pkg/cardlink"
	"github.com/go-ctap/hybridmoc/pkg/encoder"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/matcher"
	"github.com/go-ctap/hybridmoc/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHID strips the report ID the way the HID stack does before the
// report reaches the card.
type fakeHID struct {
	net.Conn
	reports [][]byte
}

func (f *fakeHID) Write(p []byte) (int, error) {
	if len(p) == 0 || p[0] != 0x00 {
		return 0, errors.New("missing report ID")
	}
	f.reports = append(f.reports, append([]byte(nil), p...))

	n, err := f.Conn.Write(p[1:])
	return n + 1, err
}

func open(t *testing.T, magic hmoctypes.Magic) (*Device, *fakeHID) {
	t.Helper()

	m, err := matcher.New(magic, matcher.ExactComparator{})
	require.NoError(t, err)
	c := card.New(m)

	host, link := net.Pipe()
	go func() {
		_ = c.Serve(context.Background(), link)
	}()

	hid := &fakeHID{Conn: host}
	d, err := newDevice("fake", hid)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close()
		_ = link.Close()
	})

	return d, hid
}

func TestDevice_Flow(t *testing.T) {
	d, hid := open(t, hmoctypes.Magic1002)
	enc := encoder.New(nil)

	for _, r := range hid.reports {
		assert.Len(t, r, 65)
	}

	conf, err := enc.EncodeConf(hmoctypes.Magic1002, hmoctypes.ModelXL, 3, 0, 256, hmoctypes.FAR50000, 0, 0)
	require.NoError(t, err)
	require.NoError(t, d.PutContainer(conf.Data()))

	finger, _, err := enc.EncodeEnr(hmoctypes.Magic1002, template.New(template.TypeEHM, []byte("ring")), 4, 256)
	require.NoError(t, err)
	require.NoError(t, d.PutContainer(finger.Data()))

	md, err := d.GetMeta()
	require.NoError(t, err)
	assert.Equal(t, hmoctypes.MaskOf(4), md.FingerMask)

	ver, err := enc.EncodeVer(hmoctypes.Magic1002, template.New(template.TypeEHM, []byte("ring")), 0)
	require.NoError(t, err)
	res, err := d.Match(ver.Data(), 0, false)
	require.NoError(t, err)
	assert.Equal(t, hmoctypes.FingerCode(4), res.Decision)

	require.NoError(t, d.Erase())
	md, err = d.GetMeta()
	require.NoError(t, err)
	assert.Zero(t, md.FingerMask)
}

func TestNewDevice_NoCard(t *testing.T) {
	host, link := net.Pipe()
	_ = link.Close()

	_, err := newDevice("fake", &fakeHID{Conn: host})
	assert.ErrorIs(t, err, ErrNoCard)
	_ = host.Close()
}

func TestNewDevice_VersionWithoutMetadata(t *testing.T) {
	host, link := net.Pipe()
	go func() {
		_ = cardlink.Serve(context.Background(), link, cardlink.HandlerFunc(func(cardlink.Instruction, []byte) (hmoctypes.Status, []byte) {
			return hmoctypes.StatusVersion, nil
		}))
	}()
	t.Cleanup(func() {
		_ = host.Close()
		_ = link.Close()
	})

	_, err := newDevice("fake", &fakeHID{Conn: host})
	assert.ErrorIs(t, err, ErrNoCard)
}

func TestErrorWithMessage(t *testing.T) {
	err := newErrorMessage(ErrNoCard, "reader has no card slot")
	assert.ErrorIs(t, err, ErrNoCard)
	assert.Equal(t, "device: no card answering (reader has no card slot)", err.Error())
}
