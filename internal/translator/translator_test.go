package translator_test

import (
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/internal/translator"
)

func TestBuildQueryDatasetIncludesUniversalKeys(t *testing.T) {
	ds, err := translator.BuildQueryDataset(translator.LevelStudy, "", "", nil)
	require.NoError(t, err)

	assert.True(t, ds.Contains(tag.StudyInstanceUID))
	assert.True(t, ds.Contains(tag.PatientName))
	assert.True(t, ds.Contains(tag.QueryRetrieveLevel))
	assert.Equal(t, "STUDY", ds.GetString(tag.QueryRetrieveLevel))
}

func TestBuildQueryDatasetRejectsInvalidStudyUID(t *testing.T) {
	_, err := translator.BuildQueryDataset(translator.LevelStudy, "not-a-uid!!", "", nil)
	assert.Error(t, err)
}

func TestBuildQueryDatasetSetsFilterFromParams(t *testing.T) {
	ds, err := translator.BuildQueryDataset(translator.LevelStudy, "", "", map[string][]string{
		"PatientName": {"Doe^John"},
		"StudyDate":   {"2024-03-15"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Doe^John", ds.GetString(tag.PatientName))
	assert.Equal(t, "20240315", ds.GetString(tag.StudyDate))
}

func TestBuildQueryDatasetPreservesDateRangeMatching(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"closed range", "20240101-20240131", "20240101-20240131"},
		{"open-ended lower", "20240101-", "20240101-"},
		{"open-ended upper", "-20240131", "-20240131"},
		{"iso date still normalized", "2024-03-15", "20240315"},
		{"already dcm", "20240315", "20240315"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ds, err := translator.BuildQueryDataset(translator.LevelStudy, "", "", map[string][]string{
				"StudyDate": {tc.in},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ds.GetString(tag.StudyDate))
		})
	}
}

func TestBuildQueryDatasetNormalizesTime(t *testing.T) {
	ds, err := translator.BuildQueryDataset(translator.LevelStudy, "", "", map[string][]string{
		"StudyTime": {"14:30:25"},
	})
	require.NoError(t, err)
	assert.Equal(t, "143025", ds.GetString(tag.StudyTime))

	ds, err = translator.BuildQueryDataset(translator.LevelStudy, "", "", map[string][]string{
		"StudyTime": {"080000-120000"},
	})
	require.NoError(t, err)
	assert.Equal(t, "080000-120000", ds.GetString(tag.StudyTime))
}

func TestBuildQueryDatasetAppliesWildcardPolicy(t *testing.T) {
	ds, err := translator.BuildQueryDatasetWithPolicy(
		translator.LevelStudy, "", "",
		map[string][]string{"PatientName": {"Doe"}},
		translator.WildcardPolicy{MinChars: 2, Append: true},
	)
	require.NoError(t, err)

	assert.Equal(t, "Doe*", ds.GetString(tag.PatientName))
}

func TestBuildQueryDatasetWildcardSkipsShortValuesAndExistingWildcards(t *testing.T) {
	ds, err := translator.BuildQueryDatasetWithPolicy(
		translator.LevelStudy, "", "",
		map[string][]string{"PatientID": {"ab", "cd*"}},
		translator.WildcardPolicy{MinChars: 3, Append: true},
	)
	require.NoError(t, err)

	// "ab" is under MinChars, "cd*" already has a wildcard: neither gets an
	// extra "*" appended. GetString joins multi-valued elements with "\".
	assert.Equal(t, "ab\\cd*", ds.GetString(tag.PatientID))
}

func TestCanonicalizeKeywordIsCaseInsensitive(t *testing.T) {
	ds, err := translator.BuildQueryDataset(translator.LevelStudy, "", "", map[string][]string{
		"patientname": {"Doe^John"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Doe^John", ds.GetString(tag.PatientName))
}

func TestBuildQueryDatasetIgnoresReservedAndUnknownParams(t *testing.T) {
	ds, err := translator.BuildQueryDataset(translator.LevelStudy, "", "", map[string][]string{
		"limit":           {"10"},
		"offset":          {"0"},
		"fuzzymatching":   {"true"},
		"ThisIsNotATagAB": {"x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "STUDY", ds.GetString(tag.QueryRetrieveLevel))
}

func TestValidateUID(t *testing.T) {
	assert.True(t, translator.ValidateUID("1.2.840.10008.1.1"))
	assert.False(t, translator.ValidateUID("1.2.840.10008.1.1x"))
	assert.False(t, translator.ValidateUID(""))
}

func TestDatasetToJSONEncodesTagAsEightHexDigits(t *testing.T) {
	ds := dicom.NewDataSet()
	require.NoError(t, ds.SetStudyInstanceUID("1.2.3"))

	out, err := translator.DatasetToJSON(ds)
	require.NoError(t, err)

	elem, ok := out["0020000D"]
	require.True(t, ok)
	assert.Equal(t, "UI", elem.VR)
	assert.Equal(t, []interface{}{"1.2.3"}, elem.Value)
}

func TestDatasetsToJSONArrayEmptyIsEmptyArrayNotNull(t *testing.T) {
	out, err := translator.DatasetsToJSONArray(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestMultipartFramingRoundTrips(t *testing.T) {
	instances := [][]byte{
		[]byte("first-instance-bytes"),
		[]byte("second-instance-bytes"),
		[]byte("third"),
	}
	boundary := translator.NewBoundary(1234567890, 0xdeadbeef)
	assert.True(t, strings.HasPrefix(boundary, "----DICOMwebBoundary"))

	body := translator.CreateMultipart(instances, boundary)

	reader := multipart.NewReader(strings.NewReader(string(body)), boundary)
	var got [][]byte
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		assert.Equal(t, "application/dicom", part.Header.Get("Content-Type"))
		buf := make([]byte, 64)
		n, _ := part.Read(buf)
		got = append(got, buf[:n])
	}

	require.Len(t, got, len(instances))
	for i, data := range instances {
		assert.Equal(t, data, got[i])
	}
}

func TestContentTypeHeaderParsesBoundary(t *testing.T) {
	boundary := translator.NewBoundary(1, 2)
	contentType := `multipart/related; type="application/dicom"; boundary=` + boundary

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/related", mediaType)
	assert.Equal(t, boundary, params["boundary"])
}
