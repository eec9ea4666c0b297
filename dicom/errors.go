// Package dicom implements the dataset object model plus Part 10 file
// parsing and writing for the gateway: the representation every DIMSE
// message body and every cached instance flows through.
package dicom

import "errors"

// Sentinel decode errors. The parser and element decoder wrap these with
// positional context; callers test with errors.Is.
var (
	// ErrInvalidPreamble: the stream lacks the 128-byte preamble + "DICM"
	// marker that opens a Part 10 file.
	ErrInvalidPreamble = errors.New("invalid DICOM preamble: missing or invalid DICM prefix")

	// ErrInvalidVR: a two-byte VR code that isn't in the PS3.5 table.
	ErrInvalidVR = errors.New("invalid or unknown VR")

	// ErrInvalidTag: a tag could not be read from the stream.
	ErrInvalidTag = errors.New("invalid or malformed tag")

	// ErrInvalidTransferSyntax: the named transfer syntax is unknown or not
	// one this module can decode.
	ErrInvalidTransferSyntax = errors.New("invalid or unsupported transfer syntax")

	// ErrMissingTransferSyntax: File Meta Information carries no
	// (0002,0010) Transfer Syntax UID.
	ErrMissingTransferSyntax = errors.New("missing Transfer Syntax UID in File Meta Information")

	// ErrInvalidLength: a value length that contradicts the VR or stream.
	ErrInvalidLength = errors.New("invalid value length")

	// ErrUndefinedLength: the 0xFFFFFFFF undefined-length marker appeared
	// where this decoder requires a defined length.
	ErrUndefinedLength = errors.New("undefined length encountered")
)
