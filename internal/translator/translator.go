// Package translator converts between DICOMweb's HTTP-facing representations
// (QIDO query parameters, DICOMweb JSON, multipart/related bodies) and the
// DICOM dataset model the DIMSE layer speaks natively.
package translator

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/element"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/uid"
	"github.com/codeninja55/dicom-gateway/dicom/value"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

// Level is a DICOM Query/Retrieve level, sent in the (0008,0052) element of
// every query dataset.
type Level string

const (
	LevelStudy  Level = "STUDY"
	LevelSeries Level = "SERIES"
	LevelImage  Level = "IMAGE"
)

// universalKeys lists, per level, the keywords the PACS should echo back for
// every match even when the caller didn't filter on them, so the response
// has the fields a viewer expects.
var universalKeys = map[Level][]string{
	LevelStudy: {
		"StudyInstanceUID", "PatientName", "PatientID", "StudyDate", "StudyTime",
		"AccessionNumber", "ModalitiesInStudy", "StudyDescription",
		"NumberOfStudyRelatedSeries", "NumberOfStudyRelatedInstances",
	},
	LevelSeries: {
		"SeriesInstanceUID", "SeriesNumber", "Modality", "SeriesDescription",
		"NumberOfSeriesRelatedInstances",
	},
	LevelImage: {
		"SOPInstanceUID", "InstanceNumber",
	},
}

// WildcardPolicy controls whether, and when, a trailing "*" is appended to
// string-valued query parameters so the PACS performs prefix matching.
type WildcardPolicy struct {
	MinChars int
	Append   bool
}

// BuildQueryDataset maps QIDO query parameters to a C-FIND identifier
// dataset at the given level. params is typically net/url.Values, already
// split on comma for multi-valued keys by the caller. StudyInstanceUID and
// SeriesInstanceUID are additionally accepted as path-derived constraints
// (studyUID, seriesUID) beyond whatever the caller passed in params.
func BuildQueryDataset(level Level, studyUID, seriesUID string, params map[string][]string) (*dicom.DataSet, error) {
	return BuildQueryDatasetWithPolicy(level, studyUID, seriesUID, params, WildcardPolicy{})
}

// BuildQueryDatasetWithPolicy is BuildQueryDataset with an explicit wildcard
// policy: when Append is set, a "*" is appended to string keys of length
// >= MinChars that don't already contain a wildcard.
func BuildQueryDatasetWithPolicy(level Level, studyUID, seriesUID string, params map[string][]string, policy WildcardPolicy) (*dicom.DataSet, error) {
	ds := dicom.NewDataSet()

	levelElem, err := stringElement(tag.QueryRetrieveLevel, vr.CodeString, string(level))
	if err != nil {
		return nil, err
	}
	if err := ds.Add(levelElem); err != nil {
		return nil, err
	}

	for _, keyword := range universalKeys[level] {
		if err := addEmptyKey(ds, keyword); err != nil {
			return nil, fmt.Errorf("translator: universal key %s: %w", keyword, err)
		}
	}

	if studyUID != "" {
		if !uid.IsValid(studyUID) {
			return nil, fmt.Errorf("translator: invalid StudyInstanceUID %q", studyUID)
		}
		if err := setKeyword(ds, "StudyInstanceUID", []string{studyUID}, policy); err != nil {
			return nil, err
		}
	}
	if seriesUID != "" {
		if !uid.IsValid(seriesUID) {
			return nil, fmt.Errorf("translator: invalid SeriesInstanceUID %q", seriesUID)
		}
		if err := setKeyword(ds, "SeriesInstanceUID", []string{seriesUID}, policy); err != nil {
			return nil, err
		}
	}

	for key, values := range params {
		keyword := canonicalizeKeyword(key)
		if keyword == "" {
			continue
		}
		if err := setKeyword(ds, keyword, normalizeValues(keyword, values), policy); err != nil {
			return nil, fmt.Errorf("translator: query parameter %s: %w", key, err)
		}
	}

	return ds, nil
}

// reservedParams are QIDO query parameters that control the response rather
// than map to a DICOM element.
var reservedParams = map[string]bool{
	"limit": true, "offset": true, "fuzzymatching": true, "includefield": true,
}

// canonicalizeKeyword maps a QIDO query parameter name to a dictionary
// keyword, case-insensitively, skipping response-control parameters and
// unrecognized keys (the latter are ignored rather than rejected, since an
// unknown filter should not fail the whole query).
func canonicalizeKeyword(param string) string {
	lower := strings.ToLower(param)
	if reservedParams[lower] {
		return ""
	}
	if info, err := tag.FindByKeyword(param); err == nil {
		return info.Keyword
	}
	// Fall back to a case-insensitive scan: QIDO clients are not required to
	// send the exact keyword casing (e.g. "patientname").
	for _, info := range tag.TagDict {
		if strings.EqualFold(info.Keyword, param) {
			return info.Keyword
		}
	}
	return ""
}

// normalizeValues applies date/time normalization (dates to YYYYMMDD,
// times to HHMMSS) to the keyword's values based on its VR.
func normalizeValues(keyword string, values []string) []string {
	info, err := tag.FindByKeyword(keyword)
	if err != nil || len(info.VRs) == 0 {
		return values
	}

	out := make([]string, len(values))
	for i, v := range values {
		switch info.VRs[0] {
		case vr.Date:
			out[i] = normalizeDate(v)
		case vr.Time:
			out[i] = normalizeTime(v)
		default:
			out[i] = v
		}
	}
	return out
}

// dateRange matches DICOM range matching for DA values ("lo-hi", either
// side optional) where both sides are already in DCM form. Such values pass
// through untouched; stripping the "-" would merge the two dates.
var dateRange = regexp.MustCompile(`^([0-9]{8})?-([0-9]{8})?$`)

// timeRange is the TM counterpart of dateRange.
var timeRange = regexp.MustCompile(`^([0-9]{2,6}(\.[0-9]+)?)?-([0-9]{2,6}(\.[0-9]+)?)?$`)

// normalizeDate strips separators from an ISO-ish date ("2024-03-15" or
// "2024/03/15") down to DICOM's YYYYMMDD. Values that don't reduce to a
// DA-shaped string are sent as-is and left to the PACS to reject.
func normalizeDate(s string) string {
	if s != "-" && dateRange.MatchString(s) {
		return s
	}
	return strings.NewReplacer("-", "", "/", "").Replace(s)
}

// normalizeTime strips colons from an ISO-ish time ("14:30:25") down to
// DICOM's HHMMSS, preserving any fractional-second suffix.
func normalizeTime(s string) string {
	if s != "-" && strings.Contains(s, "-") && timeRange.MatchString(s) {
		return s
	}
	return strings.ReplaceAll(s, ":", "")
}

// addEmptyKey adds keyword to ds with an empty value, the "universal
// matching" form that asks the PACS to return the attribute without
// filtering on it.
func addEmptyKey(ds *dicom.DataSet, keyword string) error {
	info, err := tag.FindByKeyword(keyword)
	if err == nil && ds.Contains(info.Tag) {
		return nil
	}
	return setKeyword(ds, keyword, []string{""}, WildcardPolicy{})
}

// setKeyword builds a string-valued element for keyword and adds it to ds,
// applying the wildcard policy and overwriting any existing (e.g. universal
// empty) element for the same tag.
func setKeyword(ds *dicom.DataSet, keyword string, values []string, policy WildcardPolicy) error {
	info, err := tag.FindByKeyword(keyword)
	if err != nil {
		return fmt.Errorf("unknown dictionary keyword %q", keyword)
	}
	if len(info.VRs) == 0 {
		return fmt.Errorf("keyword %q has no known VR", keyword)
	}
	elemVR := info.VRs[0]

	if policy.Append && isWildcardEligible(elemVR) {
		for i, v := range values {
			if v == "" || strings.ContainsAny(v, "*?") {
				continue
			}
			if len(v) >= policy.MinChars {
				values[i] = v + "*"
			}
		}
	}

	val, err := value.NewStringValue(elemVR, values)
	if err != nil {
		return fmt.Errorf("keyword %q: %w", keyword, err)
	}
	elem, err := element.NewElement(info.Tag, elemVR, val)
	if err != nil {
		return fmt.Errorf("keyword %q: %w", keyword, err)
	}
	return ds.Add(elem)
}

// isWildcardEligible reports whether VR is one of the free-text string
// types wildcard matching applies to, excluding UIDs and codes where a
// trailing "*" would change semantics rather than broaden a prefix match.
func isWildcardEligible(v vr.VR) bool {
	switch v {
	case vr.LongString, vr.ShortString, vr.PersonName, vr.ShortText, vr.LongText, vr.UnlimitedText, vr.UnlimitedCharacters:
		return true
	default:
		return false
	}
}

func stringElement(t tag.Tag, v vr.VR, s string) (*element.Element, error) {
	val, err := value.NewStringValue(v, []string{s})
	if err != nil {
		return nil, err
	}
	return element.NewElement(t, v, val)
}

// ValidateUID reports whether s is a syntactically valid DICOM UID.
// Handlers check this before any DIMSE call is made.
func ValidateUID(s string) bool {
	return uid.IsValid(s)
}

// jsonElement is the wire shape of a single DICOMweb attribute.
type jsonElement struct {
	VR           string        `json:"vr"`
	Value        []interface{} `json:"Value,omitempty"`
	InlineBinary string        `json:"InlineBinary,omitempty"`
}

// DatasetToJSON converts a DataSet to the DICOMweb tag-keyed JSON object:
// 8-hex-digit group+element keys, each holding {vr, Value} or
// {vr, InlineBinary}. Unknown and private (odd-group) tags pass through
// using whatever VR the element already carries. Elements whose value
// cannot be represented are skipped rather than failing the whole
// conversion, since DICOMweb metadata responses are best-effort.
func DatasetToJSON(ds *dicom.DataSet) (map[string]jsonElement, error) {
	out := make(map[string]jsonElement, ds.Len())

	for _, elem := range ds.Elements() {
		je, ok := elementToJSON(elem)
		if !ok {
			continue
		}
		out[fmt.Sprintf("%08X", elem.Tag().Uint32())] = je
	}

	return out, nil
}

// elementToJSON converts a single element, returning ok=false for elements
// this translator cannot represent (e.g. sequences, which this gateway does
// not need to round-trip through DICOMweb JSON).
func elementToJSON(elem *element.Element) (jsonElement, bool) {
	switch v := elem.Value().(type) {
	case *value.StringValue:
		values := make([]interface{}, 0, len(v.Strings()))
		for _, s := range v.Strings() {
			if s == "" {
				continue
			}
			values = append(values, s)
		}
		return jsonElement{VR: elem.VR().String(), Value: values}, true

	case *value.IntValue:
		values := make([]interface{}, 0, len(v.Ints()))
		for _, n := range v.Ints() {
			values = append(values, n)
		}
		return jsonElement{VR: elem.VR().String(), Value: values}, true

	case *value.FloatValue:
		values := make([]interface{}, 0, len(v.Floats()))
		for _, f := range v.Floats() {
			values = append(values, f)
		}
		return jsonElement{VR: elem.VR().String(), Value: values}, true

	case *value.BytesValue:
		if elem.VR() == vr.SequenceOfItems {
			return jsonElement{}, false
		}
		return jsonElement{VR: elem.VR().String(), InlineBinary: base64.StdEncoding.EncodeToString(v.Bytes())}, true

	default:
		return jsonElement{}, false
	}
}

// DatasetsToJSONArray renders a QIDO result set as a DICOMweb JSON array,
// `[]` (not null) when datasets is empty, since an empty array is a valid
// QIDO response.
func DatasetsToJSONArray(datasets []*dicom.DataSet) ([]byte, error) {
	out := make([]map[string]jsonElement, 0, len(datasets))
	for _, ds := range datasets {
		je, err := DatasetToJSON(ds)
		if err != nil {
			return nil, err
		}
		out = append(out, je)
	}
	return json.Marshal(out)
}

// CreateMultipart packages instances (each already-serialized Part 10
// bytes) into a multipart/related body framed with boundary.
func CreateMultipart(instances [][]byte, boundary string) []byte {
	var buf bytes.Buffer
	for _, data := range instances {
		buf.WriteString("--" + boundary + "\r\n")
		buf.WriteString("Content-Type: application/dicom\r\n")
		fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(data))
		buf.Write(data)
		buf.WriteString("\r\n")
	}
	buf.WriteString("--" + boundary + "--\r\n")
	return buf.Bytes()
}

// NewBoundary generates a `----DICOMwebBoundary<ts><rand>` multipart
// boundary. now and rand are injected by the caller (typically
// time.Now().UnixNano() and a random uint32) so this function stays
// deterministic and testable.
func NewBoundary(now int64, rand uint32) string {
	return fmt.Sprintf("----DICOMwebBoundary%d%08x", now, rand)
}
