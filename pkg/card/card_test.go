package card

import (
	"context"
	"net"
	"testing"

	"github.com/go-ctap/hybridmoc/pkg/cardlink"
	"github.com/go-ctap/hybridmoc/pkg/container"
	"github.com/go-ctap/hybridmoc/pkg/encoder"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/matcher"
	"github.com/go-ctap/hybridmoc/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var enc = encoder.New(nil)

func newCard(t *testing.T, magic hmoctypes.Magic) *Card {
	t.Helper()

	m, err := matcher.New(magic, matcher.ExactComparator{})
	require.NoError(t, err)
	return New(m)
}

func confContainer(t *testing.T, magic hmoctypes.Magic, n, fingerSize uint16) []byte {
	t.Helper()

	c, err := enc.EncodeConf(magic, hmoctypes.ModelL, n, 32, fingerSize, hmoctypes.FAR10000, hmoctypes.Feat360, 0)
	require.NoError(t, err)
	return c.Data()
}

func fingerContainer(t *testing.T, code hmoctypes.FingerCode, data string) []byte {
	t.Helper()

	c, _, err := enc.EncodeEnr(hmoctypes.Magic1002, template.New(template.TypeEHM, []byte(data)), code, 0)
	require.NoError(t, err)
	return c.Data()
}

func removal(t *testing.T, code hmoctypes.FingerCode) []byte {
	t.Helper()

	c, err := enc.EncodeRemoval(hmoctypes.Magic1002, code)
	require.NoError(t, err)
	return c.Data()
}

func verify(t *testing.T, c *Card, probe string) hmoctypes.FingerCode {
	t.Helper()

	v, err := enc.EncodeVer(hmoctypes.Magic1002, template.New(template.TypeEHM, []byte(probe)), 0)
	require.NoError(t, err)

	res, err := c.Match(v.Data(), 0, false)
	require.NoError(t, err)
	return res.Decision
}

func fingerMask(t *testing.T, c *Card) hmoctypes.FingerMask {
	t.Helper()

	md, err := c.GetMeta()
	require.NoError(t, err)
	return md.FingerMask
}

func TestCard_Scenario(t *testing.T) {
	c := newCard(t, hmoctypes.Magic1002)

	md, err := c.GetMeta()
	require.NoError(t, err)
	assert.Equal(t, hmoctypes.Magic1002, md.Layout.LibMagic)
	assert.Zero(t, md.Layout.NumContainers)
	assert.False(t, c.Personalized())

	require.NoError(t, c.PutContainer(confContainer(t, hmoctypes.Magic1002, 3, 512)))
	assert.True(t, c.Personalized())
	require.NoError(t, c.PutContainer(fingerContainer(t, 3, "finger three")))

	md, err = c.GetMeta()
	require.NoError(t, err)
	assert.Equal(t, hmoctypes.FingerMask(0x0008), md.FingerMask)
	assert.Equal(t, container.Layout{
		LibMagic:      hmoctypes.Magic1002,
		NumContainers: 3,
		ConfSize:      32,
		FingerSize:    512,
	}, md.Layout)

	assert.Equal(t, hmoctypes.FingerCode(3), verify(t, c, "finger three"))
	assert.Zero(t, verify(t, c, "finger four"))
}

func TestCard_ReplaceAndRemove(t *testing.T) {
	c := newCard(t, hmoctypes.Magic1002)
	require.NoError(t, c.PutContainer(confContainer(t, hmoctypes.Magic1002, 3, 128)))

	require.NoError(t, c.PutContainer(fingerContainer(t, 3, "old")))
	require.NoError(t, c.PutContainer(fingerContainer(t, 3, "new")))
	assert.Equal(t, hmoctypes.MaskOf(3), fingerMask(t, c))
	assert.Equal(t, hmoctypes.FingerCode(3), verify(t, c, "new"))
	assert.Zero(t, verify(t, c, "old"))

	require.NoError(t, c.PutContainer(fingerContainer(t, 5, "five")))
	assert.Equal(t, hmoctypes.MaskOf(3, 5), fingerMask(t, c))

	err := c.PutContainer(fingerContainer(t, 7, "seven"))
	assert.Equal(t, hmoctypes.StatusMemory, hmoctypes.StatusOf(err))

	require.NoError(t, c.PutContainer(removal(t, 3)))
	assert.Equal(t, hmoctypes.MaskOf(5), fingerMask(t, c))
	assert.Zero(t, verify(t, c, "new"))

	require.NoError(t, c.PutContainer(removal(t, 3)))
	require.NoError(t, c.PutContainer(fingerContainer(t, 7, "seven")))
	assert.Equal(t, hmoctypes.MaskOf(5, 7), fingerMask(t, c))
}

func TestCard_Tear(t *testing.T) {
	c := newCard(t, hmoctypes.Magic1002)
	require.NoError(t, c.PutContainer(confContainer(t, hmoctypes.Magic1002, 4, 128)))
	require.NoError(t, c.PutContainer(fingerContainer(t, 1, "one")))

	var torn []int
	c.SimulateTear(func(slot int) bool {
		torn = append(torn, slot)
		return true
	})

	err := c.PutContainer(fingerContainer(t, 2, "two"))
	assert.Equal(t, hmoctypes.StatusWritePersistent, hmoctypes.StatusOf(err))
	assert.Equal(t, []int{2}, torn)
	assert.Equal(t, hmoctypes.MaskOf(1), fingerMask(t, c))

	// A torn replacement leaves the finger invalid, never half written.
	err = c.PutContainer(fingerContainer(t, 1, "uno"))
	assert.Equal(t, hmoctypes.StatusWritePersistent, hmoctypes.StatusOf(err))
	assert.Zero(t, fingerMask(t, c))
	assert.Zero(t, verify(t, c, "one"))
	assert.Zero(t, verify(t, c, "uno"))

	c.SimulateTear(nil)
	require.NoError(t, c.PutContainer(fingerContainer(t, 2, "two")))
	assert.Equal(t, hmoctypes.MaskOf(2), fingerMask(t, c))
	assert.Equal(t, hmoctypes.FingerCode(2), verify(t, c, "two"))
}

func TestCard_DefaultFingerSize(t *testing.T) {
	c := newCard(t, hmoctypes.Magic1002)

	require.NoError(t, c.PutContainer(confContainer(t, hmoctypes.Magic1002, hmoctypes.MaxContainers, 0)))
	require.True(t, c.Personalized())

	md, err := c.GetMeta()
	require.NoError(t, err)
	assert.Equal(t, encoder.DefaultFingerSize(hmoctypes.Magic1002, hmoctypes.ModelL), md.Layout.FingerSize)

	for code := hmoctypes.FingerCode(1); code < hmoctypes.MaxContainers; code++ {
		require.NoError(t, c.PutContainer(fingerContainer(t, code, "finger")))
	}
}

func TestCard_TornPersonalization(t *testing.T) {
	c := newCard(t, hmoctypes.Magic1002)
	c.SimulateTear(func(int) bool { return true })

	err := c.PutContainer(confContainer(t, hmoctypes.Magic1002, 3, 128))
	assert.Error(t, err)
	assert.False(t, c.Personalized())
}

func TestCard_Errors(t *testing.T) {
	c := newCard(t, hmoctypes.Magic1002)

	err := c.PutContainer(fingerContainer(t, 1, "one"))
	assert.Equal(t, hmoctypes.StatusInit, hmoctypes.StatusOf(err))

	_, err = c.Match([]byte{0x7f, 0x2e, 0x01, 0x01}, 0, false)
	assert.Equal(t, hmoctypes.StatusInit, hmoctypes.StatusOf(err))

	err = c.PutContainer(confContainer(t, hmoctypes.Magic1001, 3, 128))
	assert.ErrorIs(t, err, hmoctypes.ErrVersion)
	assert.False(t, c.Personalized())

	err = c.PutContainer(confContainer(t, hmoctypes.Magic1002, 11, hmoctypes.MaxContainerSize))
	assert.Equal(t, hmoctypes.StatusMemory, hmoctypes.StatusOf(err))

	err = c.PutContainer([]byte{0x00, 0x04, 0xc0, 0x02, 0x81, 0x00})
	assert.ErrorIs(t, err, hmoctypes.ErrParameter)

	err = c.PutContainer(nil)
	assert.ErrorIs(t, err, hmoctypes.ErrParameter)

	require.NoError(t, c.PutContainer(confContainer(t, hmoctypes.Magic1002, 3, 64)))

	err = c.PutContainer(confContainer(t, hmoctypes.Magic1002, 3, 64))
	assert.ErrorIs(t, err, hmoctypes.ErrParameter)

	err = c.PutContainer(fingerContainer(t, 1, string(make([]byte, 100))))
	assert.ErrorIs(t, err, hmoctypes.ErrBuffer)

	err = c.PutContainer([]byte{0xef, 0x04, 0xc0, 0x02, 0x81, 0x01})
	assert.ErrorIs(t, err, hmoctypes.ErrParameter)

	c.Erase()
	assert.False(t, c.Personalized())
}

func TestCard_Snapshot(t *testing.T) {
	c := newCard(t, hmoctypes.Magic1002)
	require.NoError(t, c.PutContainer(confContainer(t, hmoctypes.Magic1002, 3, 128)))
	require.NoError(t, c.PutContainer(fingerContainer(t, 6, "six")))

	b, err := c.Snapshot()
	require.NoError(t, err)

	restored := newCard(t, hmoctypes.Magic1002)
	require.NoError(t, restored.Restore(b))
	assert.Equal(t, c.ID, restored.ID)
	assert.Equal(t, hmoctypes.MaskOf(6), fingerMask(t, restored))
	assert.Equal(t, hmoctypes.FingerCode(6), verify(t, restored, "six"))

	other := newCard(t, hmoctypes.Magic1101)
	assert.ErrorIs(t, other.Restore(b), hmoctypes.ErrVersion)
	assert.False(t, other.Personalized())

	assert.ErrorIs(t, restored.Restore([]byte{0xff}), hmoctypes.ErrData)

	empty, err := newCard(t, hmoctypes.Magic1002).Snapshot()
	require.NoError(t, err)
	require.NoError(t, restored.Restore(empty))
	assert.False(t, restored.Personalized())
}

func TestCard_Serve(t *testing.T) {
	c := newCard(t, hmoctypes.Magic1002)

	host, link := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- c.Serve(context.Background(), link)
	}()
	defer func() {
		_ = host.Close()
		assert.NoError(t, <-done)
	}()

	client := cardlink.NewClient(host)

	md, err := client.GetMeta()
	require.NoError(t, err)
	assert.Zero(t, md.Layout.NumContainers)

	require.NoError(t, client.PutContainer(confContainer(t, hmoctypes.Magic1002, 3, 256)))
	require.NoError(t, client.PutContainer(fingerContainer(t, 2, "two")))

	md, err = client.GetMeta()
	require.NoError(t, err)
	assert.Equal(t, hmoctypes.MaskOf(2), md.FingerMask)

	v, err := enc.EncodeVer(hmoctypes.Magic1002, template.New(template.TypeEHM, []byte("two")), hmoctypes.MaskOf(2))
	require.NoError(t, err)
	res, err := client.Match(v.Data(), 0, true)
	require.NoError(t, err)
	assert.Equal(t, hmoctypes.FingerCode(2), res.Decision)
	assert.Equal(t, uint16(0xFFFF), res.Score.MustGet())

	_, err = client.Match([]byte{0x7f, 0x2e, 0x09}, 0, false)
	assert.ErrorIs(t, err, hmoctypes.ErrParameter)

	require.NoError(t, client.Erase())
	assert.False(t, c.Personalized())
}
