package uid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/dicom/uid"
)

func TestIsValid(t *testing.T) {
	valid := []string{
		"1.2",
		"1.2.840.10008.1.1",
		"1.2.840.10008.5.1.4.1.2.2.1",
		"0.0",
		"1.0.2",
	}
	for _, s := range valid {
		assert.True(t, uid.IsValid(s), "expected %q to be valid", s)
	}

	invalid := []string{
		"",
		"1",       // single component
		"1.2.",    // trailing dot
		".1.2",    // leading dot
		"1..2",    // empty component
		"1.02",    // leading zero
		"1.2a",    // non-digit
		"1.2 ",    // trailing space
		"abc def", // not numeric at all
		"1.2.840.10008.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1.1", // 65 chars
	}
	for _, s := range invalid {
		assert.False(t, uid.IsValid(s), "expected %q to be invalid", s)
	}
}

func TestParseAndString(t *testing.T) {
	u, err := uid.Parse("1.2.840.10008.1.1")
	require.NoError(t, err)
	assert.Equal(t, "1.2.840.10008.1.1", u.String())

	_, err = uid.Parse("not-a-uid")
	assert.Error(t, err)
}

func TestMustParsePanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { uid.MustParse("1..2") })
}

func TestWellKnownUIDs(t *testing.T) {
	assert.Equal(t, "1.2.840.10008.1.1", uid.VerificationSOPClass.String())
	assert.Equal(t, "1.2.840.10008.1.2", uid.ImplicitVRLittleEndian.String())
	assert.Equal(t, "1.2.840.10008.1.2.1", uid.ExplicitVRLittleEndian.String())
	assert.Equal(t, "1.2.840.10008.5.1.4.1.2.2.2", uid.StudyRootQueryRetrieveInformationModelMove.String())
}

func TestFind(t *testing.T) {
	info, err := uid.Find("1.2.840.10008.5.1.4.1.1.2")
	require.NoError(t, err)
	assert.Equal(t, "CT Image Storage", info.Name)
	assert.Equal(t, uid.TypeSOPClass, info.Type)
	assert.False(t, info.Retired)

	_, err = uid.Find("9.9.9.9")
	assert.Error(t, err)
}

func TestFindAllByType(t *testing.T) {
	syntaxes := uid.FindAllByType(uid.TypeTransferSyntax)
	require.NotEmpty(t, syntaxes)
	for _, info := range syntaxes {
		assert.Equal(t, uid.TypeTransferSyntax, info.Type)
		assert.True(t, uid.IsValid(info.UID), "registry UID %q must be valid", info.UID)
	}

	classes := uid.FindAllByType(uid.TypeSOPClass)
	assert.Greater(t, len(classes), 75)
}

func TestGenerate(t *testing.T) {
	a, b := uid.Generate(), uid.Generate()
	assert.True(t, uid.IsValid(a), "generated UID %q must be valid", a)
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, len(a), 64)
}
