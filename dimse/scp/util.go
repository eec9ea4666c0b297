package scp

import (
	"fmt"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
)

// GetStringFromDataSet pulls a string attribute out of a received
// dataset, erroring when the tag is absent or valueless. Exported so the
// C-STORE handler wiring in cmd/gateway can extract the identifying UIDs
// the same way the SCP does internally.
func GetStringFromDataSet(ds *dicom.DataSet, t tag.Tag) (string, error) {
	elem, err := ds.Get(t)
	if err != nil {
		return "", fmt.Errorf("get tag %s: %w", t, err)
	}
	if elem.Value() == nil {
		return "", fmt.Errorf("tag %s has nil value", t)
	}
	return elem.Value().String(), nil
}
