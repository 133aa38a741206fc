package hmoctypes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerCode(t *testing.T) {
	c := NewContainerCode(3, true)
	assert.Equal(t, ContainerCode(0x83), c)
	assert.True(t, c.Active())
	assert.Equal(t, FingerCode(3), c.ID())

	c = NewContainerCode(10, false)
	assert.False(t, c.Active())
	assert.Equal(t, FingerCode(10), c.ID())

	// rfu bits are ignored
	assert.Equal(t, FingerCode(5), ContainerCode(0xf5).ID())
}

func TestFingerMask(t *testing.T) {
	m := MaskOf(3, 5)
	assert.Equal(t, FingerMask(0x0028), m)
	assert.True(t, m.Has(3))
	assert.False(t, m.Has(1))
	assert.Equal(t, []FingerCode{3, 5}, m.Codes())
	assert.Equal(t, "{3,5}", m.String())
	assert.True(t, m.Valid())

	assert.False(t, FingerMask(0x0001).Valid())
	assert.False(t, FingerMask(0x0800).Valid())
	assert.True(t, MaskOf(1, 10).Valid())
	assert.Equal(t, FingerMask(0x0008), FingerCode(3).Bit())
}

func TestMagic(t *testing.T) {
	tests := []struct {
		magic       Magic
		supported   bool
		host        bool
		maxMinutiae int
		verlimit    bool
	}{
		{MagicLegacy, false, false, 46, false},
		{Magic1000, true, false, 46, false},
		{Magic1001, true, true, 64, false},
		{Magic1002, true, true, 46, false},
		{Magic1108, true, false, 46, true},
		{Magic1109, true, true, 64, true},
		{Magic110A, true, true, 46, true},
		{Magic(0x2002), false, true, 46, false},
	}

	for _, tt := range tests {
		t.Run(tt.magic.String(), func(t *testing.T) {
			assert.Equal(t, tt.supported, tt.magic.Supported())
			assert.Equal(t, tt.host, tt.magic.HostPreprocessed())
			assert.Equal(t, tt.maxMinutiae, tt.magic.MaxMinutiae())
			assert.Equal(t, tt.verlimit, tt.magic.SupportsVerlimit())
		})
	}
}

func TestAlignSize(t *testing.T) {
	assert.Equal(t, 0, AlignSize(0))
	assert.Equal(t, 16, AlignSize(1))
	assert.Equal(t, 32, AlignSize(32))
	assert.Equal(t, 48, AlignSize(33))
}

func TestParseModelAndFAR(t *testing.T) {
	m, ok := ParseModel("FULL_XL")
	assert.True(t, ok)
	assert.Equal(t, ModelFullXL, m)

	_, ok = ParseModel("XXL")
	assert.False(t, ok)

	f, ok := ParseFAR("FAR_10000")
	assert.True(t, ok)
	assert.Equal(t, FAR10000, f)
	assert.Equal(t, "FAR_10000", f.String())

	f, ok = ParseFAR("2K")
	assert.True(t, ok)
	assert.Equal(t, FAR2K, f)

	assert.False(t, FAR(29).Valid())
}

func TestStatusError(t *testing.T) {
	err := NewError("getmeta", StatusVersion, "card magic %s", Magic1002)
	assert.ErrorIs(t, err, ErrVersion)
	assert.NotErrorIs(t, err, ErrParameter)
	assert.Equal(t, "getmeta failed (PBI_EVERSION): card magic 0x1002", err.Error())

	wrapped := fmt.Errorf("personalize: %w", err)
	assert.Equal(t, StatusVersion, StatusOf(wrapped))
	assert.Equal(t, StatusBuffer, StatusOf(fmt.Errorf("x: %w", ErrBuffer)))
	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusFatal, StatusOf(errors.New("boom")))

	assert.NoError(t, ErrorOf("match", StatusOK))
	assert.ErrorIs(t, ErrorOf("match", StatusParameter), ErrParameter)
}

func TestConvertStatus(t *testing.T) {
	assert.Equal(t, RCOK, ConvertStatus(StatusOK))
	assert.Equal(t, RCWrongBufferSize, ConvertStatus(StatusBuffer))
	assert.Equal(t, RCInvalidParameter, ConvertStatus(StatusParameter))
	assert.Equal(t, RCNotSupported, ConvertStatus(StatusVersion))
	assert.Equal(t, RCNotSupported, ConvertStatus(StatusSupport))
	assert.Equal(t, RCFatal, ConvertStatus(StatusFatal))
	assert.Equal(t, RCFatal, ConvertStatus(Status(200)))
	assert.Equal(t, "PB_RC_WRONG_BUFFER_SIZE", RCWrongBufferSize.String())
}

func TestTextRoundTrip(t *testing.T) {
	var m Model
	require.NoError(t, m.UnmarshalText([]byte("FULL_XL")))
	assert.Equal(t, ModelFullXL, m)
	assert.Error(t, m.UnmarshalText([]byte("XXL")))

	var f FAR
	require.NoError(t, f.UnmarshalText([]byte("FAR_50000")))
	assert.Equal(t, FAR50000, f)
	require.NoError(t, f.UnmarshalText([]byte("2K")))
	assert.Equal(t, FAR2K, f)
	b, err := FAR10000.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "FAR_10000", string(b))

	var magic Magic
	require.NoError(t, magic.UnmarshalText([]byte("0x110A")))
	assert.Equal(t, Magic110A, magic)
	require.NoError(t, magic.UnmarshalText([]byte("4098")))
	assert.Equal(t, Magic1002, magic)
	assert.Error(t, magic.UnmarshalText([]byte("0x10000")))
}
