// Package dimse models DIMSE messages (PS3.7): command sets, their
// Implicit-VR wire encoding, and the P-DATA fragmentation that carries
// command + dataset pairs across an association.
package dimse

import (
	"fmt"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/element"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/value"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

// Command field values (PS3.7 table E.1-1).
const (
	CommandCStoreRQ  uint16 = 0x0001
	CommandCStoreRSP uint16 = 0x8001
	CommandCEchoRQ   uint16 = 0x0030
	CommandCEchoRSP  uint16 = 0x8030
	CommandCFindRQ   uint16 = 0x0020
	CommandCFindRSP  uint16 = 0x8020
	CommandCGetRQ    uint16 = 0x0010
	CommandCGetRSP   uint16 = 0x8010
	CommandCMoveRQ   uint16 = 0x0021
	CommandCMoveRSP  uint16 = 0x8021
	CommandCCancelRQ uint16 = 0x0FFF
)

// Status codes.
const (
	StatusSuccess                     uint16 = 0x0000
	StatusPending                     uint16 = 0xFF00
	StatusPendingWarning              uint16 = 0xFF01
	StatusCancel                      uint16 = 0xFE00
	StatusAttributeListError          uint16 = 0x0107
	StatusAttributeValueOutOfRange    uint16 = 0x0116
	StatusSOPClassNotSupported        uint16 = 0x0122
	StatusClassInstanceConflict       uint16 = 0x0119
	StatusDuplicateSOPInstance        uint16 = 0x0111
	StatusResourceLimitation          uint16 = 0xA700
	StatusOutOfResources              uint16 = 0xA900
	StatusDataSetDoesNotMatchSOPClass uint16 = 0xA900
	StatusProcessingFailure           uint16 = 0x0110
	StatusMoveDestinationUnknown      uint16 = 0xA801
	StatusNotAuthorized               uint16 = 0x0124
)

// (0000,0800) Command Data Set Type values.
const (
	DataSetPresent    uint16 = 0x0000
	DataSetNotPresent uint16 = 0x0101
)

// (0000,0700) Priority values.
const (
	PriorityLow    uint16 = 0x0002
	PriorityMedium uint16 = 0x0000
	PriorityHigh   uint16 = 0x0001
)

// Group-0000 command element tags.
var (
	tagCommandField              = tag.New(0x0000, 0x0100)
	tagMessageID                 = tag.New(0x0000, 0x0110)
	tagMessageIDBeingRespondedTo = tag.New(0x0000, 0x0120)
	tagAffectedSOPClassUID       = tag.New(0x0000, 0x0002)
	tagAffectedSOPInstanceUID    = tag.New(0x0000, 0x1000)
	tagRequestedSOPClassUID      = tag.New(0x0000, 0x0003)
	tagRequestedSOPInstanceUID   = tag.New(0x0000, 0x1001)
	tagPriority                  = tag.New(0x0000, 0x0700)
	tagCommandDataSetType        = tag.New(0x0000, 0x0800)
	tagStatus                    = tag.New(0x0000, 0x0900)
	tagRemainingSubOps           = tag.New(0x0000, 0x1020)
	tagCompletedSubOps           = tag.New(0x0000, 0x1021)
	tagFailedSubOps              = tag.New(0x0000, 0x1022)
	tagWarningSubOps             = tag.New(0x0000, 0x1023)
	tagMoveDestination           = tag.New(0x0000, 0x0600)
	tagMoveOriginatorAETitle     = tag.New(0x0000, 0x1030)
	tagMoveOriginatorMessageID   = tag.New(0x0000, 0x1031)
)

// CommandSet carries the fields of any DIMSE command or response this
// gateway sends or receives. Unused fields stay zero and are omitted on
// the wire.
type CommandSet struct {
	CommandField              uint16
	MessageID                 uint16
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	RequestedSOPClassUID      string
	RequestedSOPInstanceUID   string
	Priority                  uint16
	CommandDataSetType        uint16
	Status                    uint16
	NumberOfRemainingSubOps   uint16
	NumberOfCompletedSubOps   uint16
	NumberOfFailedSubOps      uint16
	NumberOfWarningSubOps     uint16
	MoveDestination           string
	MoveOriginatorAETitle     string
	MoveOriginatorMessageID   uint16
}

// isResponse reports whether the command field is a response (high bit
// set).
func (cs *CommandSet) isResponse() bool {
	return cs.CommandField&0x8000 != 0
}

// ToDataSet renders the command set as a group-0000 dataset ready for
// Implicit VR encoding. CommandField and CommandDataSetType are always
// present; Status only on responses; Priority on requests; everything
// else only when non-zero.
func (cs *CommandSet) ToDataSet() (*dicom.DataSet, error) {
	ds := dicom.NewDataSet()

	put16 := func(t tag.Tag, v uint16) error {
		val, err := value.NewIntValue(vr.UnsignedShort, []int64{int64(v)})
		if err != nil {
			return fmt.Errorf("failed to create uint16 value: %w", err)
		}
		elem, err := element.NewElement(t, vr.UnsignedShort, val)
		if err != nil {
			return err
		}
		return ds.Add(elem)
	}
	putStr := func(t tag.Tag, s string) error {
		val, err := value.NewStringValue(vr.UniqueIdentifier, []string{s})
		if err != nil {
			return fmt.Errorf("failed to create string value: %w", err)
		}
		elem, err := element.NewElement(t, vr.UniqueIdentifier, val)
		if err != nil {
			return err
		}
		return ds.Add(elem)
	}

	if err := put16(tagCommandField, cs.CommandField); err != nil {
		return nil, err
	}
	if err := put16(tagCommandDataSetType, cs.CommandDataSetType); err != nil {
		return nil, err
	}

	optional16 := []struct {
		t       tag.Tag
		v       uint16
		include bool
	}{
		{tagMessageID, cs.MessageID, cs.MessageID != 0},
		{tagMessageIDBeingRespondedTo, cs.MessageIDBeingRespondedTo, cs.MessageIDBeingRespondedTo != 0},
		{tagPriority, cs.Priority, cs.Priority != 0 || !cs.isResponse()},
		{tagStatus, cs.Status, cs.isResponse()},
		{tagRemainingSubOps, cs.NumberOfRemainingSubOps, cs.NumberOfRemainingSubOps != 0},
		{tagCompletedSubOps, cs.NumberOfCompletedSubOps, cs.NumberOfCompletedSubOps != 0},
		{tagFailedSubOps, cs.NumberOfFailedSubOps, cs.NumberOfFailedSubOps != 0},
		{tagWarningSubOps, cs.NumberOfWarningSubOps, cs.NumberOfWarningSubOps != 0},
		{tagMoveOriginatorMessageID, cs.MoveOriginatorMessageID, cs.MoveOriginatorMessageID != 0},
	}
	for _, f := range optional16 {
		if !f.include {
			continue
		}
		if err := put16(f.t, f.v); err != nil {
			return nil, err
		}
	}

	optionalStr := []struct {
		t tag.Tag
		v string
	}{
		{tagAffectedSOPClassUID, cs.AffectedSOPClassUID},
		{tagAffectedSOPInstanceUID, cs.AffectedSOPInstanceUID},
		{tagRequestedSOPClassUID, cs.RequestedSOPClassUID},
		{tagRequestedSOPInstanceUID, cs.RequestedSOPInstanceUID},
		{tagMoveDestination, cs.MoveDestination},
		{tagMoveOriginatorAETitle, cs.MoveOriginatorAETitle},
	}
	for _, f := range optionalStr {
		if f.v == "" {
			continue
		}
		if err := putStr(f.t, f.v); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// FromDataSet extracts a CommandSet from a decoded group-0000 dataset.
// Only CommandField is mandatory; every other field defaults to zero.
func FromDataSet(ds *dicom.DataSet) (*CommandSet, error) {
	cs := &CommandSet{}

	val, err := getUInt16(ds, tagCommandField)
	if err != nil {
		return nil, fmt.Errorf("missing required Command Field: %w", err)
	}
	cs.CommandField = val

	for _, f := range []struct {
		t    tag.Tag
		into *uint16
	}{
		{tagMessageID, &cs.MessageID},
		{tagMessageIDBeingRespondedTo, &cs.MessageIDBeingRespondedTo},
		{tagPriority, &cs.Priority},
		{tagCommandDataSetType, &cs.CommandDataSetType},
		{tagStatus, &cs.Status},
		{tagRemainingSubOps, &cs.NumberOfRemainingSubOps},
		{tagCompletedSubOps, &cs.NumberOfCompletedSubOps},
		{tagFailedSubOps, &cs.NumberOfFailedSubOps},
		{tagWarningSubOps, &cs.NumberOfWarningSubOps},
		{tagMoveOriginatorMessageID, &cs.MoveOriginatorMessageID},
	} {
		if v, err := getUInt16(ds, f.t); err == nil {
			*f.into = v
		}
	}

	for _, f := range []struct {
		t    tag.Tag
		into *string
	}{
		{tagAffectedSOPClassUID, &cs.AffectedSOPClassUID},
		{tagAffectedSOPInstanceUID, &cs.AffectedSOPInstanceUID},
		{tagRequestedSOPClassUID, &cs.RequestedSOPClassUID},
		{tagRequestedSOPInstanceUID, &cs.RequestedSOPInstanceUID},
		{tagMoveDestination, &cs.MoveDestination},
		{tagMoveOriginatorAETitle, &cs.MoveOriginatorAETitle},
	} {
		if v, err := getString(ds, f.t); err == nil {
			*f.into = v
		}
	}

	return cs, nil
}

// getUInt16 reads a US element. Group-0000 tags are outside the
// dictionary, so an implicit-VR decode yields UN bytes: those are
// decoded as little-endian by hand.
func getUInt16(ds *dicom.DataSet, t tag.Tag) (uint16, error) {
	elem, err := ds.Get(t)
	if err != nil {
		return 0, err
	}

	switch v := elem.Value().(type) {
	case *value.IntValue:
		if ints := v.Ints(); len(ints) > 0 {
			return uint16(ints[0]), nil
		}
	case *value.BytesValue:
		if raw := v.Bytes(); len(raw) == 2 {
			return uint16(raw[0]) | uint16(raw[1])<<8, nil
		}
	}
	return 0, fmt.Errorf("invalid value type for tag %s", t)
}

// getString reads a string element, tolerating the UN-bytes form the
// same way.
func getString(ds *dicom.DataSet, t tag.Tag) (string, error) {
	elem, err := ds.Get(t)
	if err != nil {
		return "", err
	}

	switch v := elem.Value().(type) {
	case *value.StringValue:
		if strs := v.Strings(); len(strs) > 0 {
			return strs[0], nil
		}
		return "", nil
	case *value.BytesValue:
		return strings.TrimRight(string(v.Bytes()), "\x00"), nil
	}
	return elem.Value().String(), nil
}
