package dicom

import (
	"fmt"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom/element"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/uid"
	"github.com/codeninja55/dicom-gateway/dicom/value"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

// GetString returns the string form of the element at t, "" when absent.
// Multi-valued elements come back joined with the DICOM "\" delimiter,
// matching their wire form.
func (ds *DataSet) GetString(t tag.Tag) string {
	elem, err := ds.Get(t)
	if err != nil {
		return ""
	}
	return elem.Value().String()
}

// setString builds a single-valued string element for t and adds it,
// replacing any existing element under the same tag.
func (ds *DataSet) setString(t tag.Tag, v vr.VR, s string) error {
	val, err := value.NewStringValue(v, []string{s})
	if err != nil {
		return fmt.Errorf("value for %s: %w", t, err)
	}
	elem, err := element.NewElement(t, v, val)
	if err != nil {
		return fmt.Errorf("element for %s: %w", t, err)
	}
	return ds.Add(elem)
}

// setUID validates (or mints, when s is empty) a UID and stores it at t.
func (ds *DataSet) setUID(t tag.Tag, s string) error {
	if s == "" {
		s = uid.Generate()
	}
	if !uid.IsValid(s) {
		return fmt.Errorf("invalid UID format: %s", s)
	}
	return ds.setString(t, vr.UniqueIdentifier, s)
}

// SetPatientName sets Patient's Name (0010,0010).
func (ds *DataSet) SetPatientName(name string) error {
	return ds.setString(tag.PatientName, vr.PersonName, name)
}

// SetPatientID sets Patient ID (0010,0020).
func (ds *DataSet) SetPatientID(id string) error {
	return ds.setString(tag.PatientID, vr.LongString, id)
}

// SetPatientBirthDate sets Patient's Birth Date (0010,0030); the value
// must be YYYYMMDD or empty.
func (ds *DataSet) SetPatientBirthDate(date string) error {
	if date != "" && len(date) != 8 {
		return fmt.Errorf("birth date must be in YYYYMMDD format or empty, got: %s", date)
	}
	return ds.setString(tag.PatientBirthDate, vr.Date, date)
}

// SetPatientSex sets Patient's Sex (0010,0040): M, F, O, or empty.
func (ds *DataSet) SetPatientSex(sex string) error {
	sex = strings.ToUpper(sex)
	switch sex {
	case "", "M", "F", "O":
		return ds.setString(tag.PatientSex, vr.CodeString, sex)
	}
	return fmt.Errorf("sex must be M, F, O, or empty, got: %s", sex)
}

// SetStudyInstanceUID sets Study Instance UID (0020,000D), minting a
// fresh UID when given "".
func (ds *DataSet) SetStudyInstanceUID(uidStr string) error {
	return ds.setUID(tag.StudyInstanceUID, uidStr)
}

// SetSeriesInstanceUID sets Series Instance UID (0020,000E), minting a
// fresh UID when given "".
func (ds *DataSet) SetSeriesInstanceUID(uidStr string) error {
	return ds.setUID(tag.SeriesInstanceUID, uidStr)
}

// SetSOPInstanceUID sets SOP Instance UID (0008,0018), minting a fresh
// UID when given "".
func (ds *DataSet) SetSOPInstanceUID(uidStr string) error {
	return ds.setUID(tag.SOPInstanceUID, uidStr)
}
