package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/dicom/value"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

func TestStringValue(t *testing.T) {
	sv, err := value.NewStringValue(vr.PersonName, []string{"Doe^John", "Roe^Jane"})
	require.NoError(t, err)

	assert.Equal(t, vr.PersonName, sv.VR())
	assert.Equal(t, []string{"Doe^John", "Roe^Jane"}, sv.Strings())
	assert.Equal(t, `Doe^John\Roe^Jane`, sv.String())
	assert.Equal(t, []byte(`Doe^John\Roe^Jane`), sv.Bytes())

	_, err = value.NewStringValue(vr.UnsignedShort, []string{"1"})
	assert.Error(t, err, "numeric VR must be rejected")

	_, err = value.NewStringValue(vr.CodeString, []string{"THIS-CODE-STRING-IS-TOO-LONG"})
	assert.Error(t, err, "CS is capped at 16 characters")
}

func TestStringValueUIPadding(t *testing.T) {
	sv, err := value.NewStringValue(vr.UniqueIdentifier, []string{"1.2.3"})
	require.NoError(t, err)
	// 5 chars pad to 6 with a trailing NUL.
	assert.Equal(t, []byte("1.2.3\x00"), sv.Bytes())

	even, err := value.NewStringValue(vr.UniqueIdentifier, []string{"1.2.34"})
	require.NoError(t, err)
	assert.Equal(t, []byte("1.2.34"), even.Bytes())
}

func TestStringValueEquals(t *testing.T) {
	a, _ := value.NewStringValue(vr.CodeString, []string{"CT"})
	b, _ := value.NewStringValue(vr.CodeString, []string{"CT"})
	c, _ := value.NewStringValue(vr.CodeString, []string{"MR"})
	d, _ := value.NewStringValue(vr.ShortString, []string{"CT"})

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(d), "same text, different VR")
}

func TestBytesValue(t *testing.T) {
	bv, err := value.NewBytesValue(vr.OtherByte, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)

	assert.Equal(t, vr.OtherByte, bv.VR())
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x00}, bv.Bytes(), "odd length pads with NUL")

	even, err := value.NewBytesValue(vr.OtherWord, []byte{0xAA, 0xBB})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, even.Bytes())

	empty, err := value.NewBytesValue(vr.Unknown, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Bytes())

	_, err = value.NewBytesValue(vr.CodeString, []byte{1})
	assert.Error(t, err)
}

func TestBytesValueString(t *testing.T) {
	short, _ := value.NewBytesValue(vr.OtherByte, []byte{0xDE, 0xAD})
	assert.Equal(t, "[DE AD]", short.String())

	long, _ := value.NewBytesValue(vr.OtherByte, make([]byte, 40))
	assert.Contains(t, long.String(), "(40 bytes)")

	empty, _ := value.NewBytesValue(vr.OtherByte, nil)
	assert.Equal(t, "[]", empty.String())
}

func TestIntValueRanges(t *testing.T) {
	cases := []struct {
		v       vr.VR
		ok, bad int64
	}{
		{vr.SignedShort, -32768, 32768},
		{vr.UnsignedShort, 65535, -1},
		{vr.SignedLong, math.MinInt32, math.MaxInt32 + 1},
		{vr.UnsignedLong, math.MaxUint32, -1},
		{vr.UnsignedVeryLong, math.MaxInt64, -1},
	}
	for _, tc := range cases {
		_, err := value.NewIntValue(tc.v, []int64{tc.ok})
		assert.NoError(t, err, "%s accepts %d", tc.v, tc.ok)
		_, err = value.NewIntValue(tc.v, []int64{tc.bad})
		assert.Error(t, err, "%s rejects %d", tc.v, tc.bad)
	}

	_, err := value.NewIntValue(vr.CodeString, []int64{1})
	assert.Error(t, err)
}

func TestIntValueBytes(t *testing.T) {
	us, err := value.NewIntValue(vr.UnsignedShort, []int64{0x0102, 0x0304})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03}, us.Bytes())

	ul, err := value.NewIntValue(vr.UnsignedLong, []int64{0x01020304})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, ul.Bytes())

	// AT encodes group and element as two separate little-endian uint16s.
	at, err := value.NewIntValue(vr.AttributeTag, []int64{0x00080018})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x00, 0x18, 0x00}, at.Bytes())

	assert.Equal(t, `258\772`, us.String())
}

func TestFloatValue(t *testing.T) {
	fd, err := value.NewFloatValue(vr.FloatingPointDouble, []float64{1.5})
	require.NoError(t, err)
	assert.Equal(t, vr.FloatingPointDouble, fd.VR())
	assert.Len(t, fd.Bytes(), 8)
	assert.Equal(t, "1.5", fd.String())

	fl, err := value.NewFloatValue(vr.FloatingPointSingle, []float64{1.5, 2.5})
	require.NoError(t, err)
	assert.Len(t, fl.Bytes(), 8)

	_, err = value.NewFloatValue(vr.DecimalString, []float64{1})
	assert.Error(t, err)
}

func TestFloatValueSpecials(t *testing.T) {
	f, err := value.NewFloatValue(vr.FloatingPointDouble, []float64{math.NaN(), math.Inf(1), math.Inf(-1)})
	require.NoError(t, err)
	assert.Equal(t, `NaN\+Inf\-Inf`, f.String())

	g, _ := value.NewFloatValue(vr.FloatingPointDouble, []float64{math.NaN(), math.Inf(1), math.Inf(-1)})
	assert.True(t, f.Equals(g), "NaN compares equal to NaN for stored values")
}
