package tag

import "github.com/codeninja55/dicom-gateway/dicom/vr"

// TagDict is the standard DICOM data dictionary (DICOM PS3.6) keyed by Tag.
//
// This covers the attributes exercised by this module: patient and study
// identification, file meta information, QIDO/WADO matching and return
// keys at the Study/Series/Instance query-retrieve levels, and the pixel
// data descriptors needed to round-trip a dataset through Part 10.
var TagDict = map[Tag]Info{
	// File Meta Information (group 0002)
	{0x0002, 0x0000}: {Tag: New(0x0002, 0x0000), VRs: []vr.VR{vr.UnsignedLong}, Name: "File Meta Information Group Length", Keyword: "FileMetaInformationGroupLength", VM: "1"},
	{0x0002, 0x0001}: {Tag: New(0x0002, 0x0001), VRs: []vr.VR{vr.OtherByte}, Name: "File Meta Information Version", Keyword: "FileMetaInformationVersion", VM: "1"},
	{0x0002, 0x0002}: {Tag: New(0x0002, 0x0002), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "Media Storage SOP Class UID", Keyword: "MediaStorageSOPClassUID", VM: "1"},
	{0x0002, 0x0003}: {Tag: New(0x0002, 0x0003), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "Media Storage SOP Instance UID", Keyword: "MediaStorageSOPInstanceUID", VM: "1"},
	{0x0002, 0x0010}: {Tag: New(0x0002, 0x0010), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "Transfer Syntax UID", Keyword: "TransferSyntaxUID", VM: "1"},
	{0x0002, 0x0012}: {Tag: New(0x0002, 0x0012), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "Implementation Class UID", Keyword: "ImplementationClassUID", VM: "1"},
	{0x0002, 0x0013}: {Tag: New(0x0002, 0x0013), VRs: []vr.VR{vr.ShortString}, Name: "Implementation Version Name", Keyword: "ImplementationVersionName", VM: "1"},
	{0x0002, 0x0016}: {Tag: New(0x0002, 0x0016), VRs: []vr.VR{vr.ApplicationEntity}, Name: "Source Application Entity Title", Keyword: "SourceApplicationEntityTitle", VM: "1"},

	// Identifying / SOP Common (group 0008)
	{0x0008, 0x0000}: {Tag: New(0x0008, 0x0000), VRs: []vr.VR{vr.UnsignedLong}, Name: "Generic Group Length", Keyword: "GenericGroupLength", VM: "1"},
	{0x0008, 0x0005}: {Tag: New(0x0008, 0x0005), VRs: []vr.VR{vr.CodeString}, Name: "Specific Character Set", Keyword: "SpecificCharacterSet", VM: "1-n"},
	{0x0008, 0x0008}: {Tag: New(0x0008, 0x0008), VRs: []vr.VR{vr.CodeString}, Name: "Image Type", Keyword: "ImageType", VM: "2-n"},
	{0x0008, 0x0012}: {Tag: New(0x0008, 0x0012), VRs: []vr.VR{vr.Date}, Name: "Instance Creation Date", Keyword: "InstanceCreationDate", VM: "1"},
	{0x0008, 0x0013}: {Tag: New(0x0008, 0x0013), VRs: []vr.VR{vr.Time}, Name: "Instance Creation Time", Keyword: "InstanceCreationTime", VM: "1"},
	{0x0008, 0x0014}: {Tag: New(0x0008, 0x0014), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "Instance Creator UID", Keyword: "InstanceCreatorUID", VM: "1"},
	{0x0008, 0x0016}: {Tag: New(0x0008, 0x0016), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "SOP Class UID", Keyword: "SOPClassUID", VM: "1"},
	{0x0008, 0x0018}: {Tag: New(0x0008, 0x0018), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "SOP Instance UID", Keyword: "SOPInstanceUID", VM: "1"},
	{0x0008, 0x0020}: {Tag: New(0x0008, 0x0020), VRs: []vr.VR{vr.Date}, Name: "Study Date", Keyword: "StudyDate", VM: "1"},
	{0x0008, 0x0021}: {Tag: New(0x0008, 0x0021), VRs: []vr.VR{vr.Date}, Name: "Series Date", Keyword: "SeriesDate", VM: "1"},
	{0x0008, 0x0022}: {Tag: New(0x0008, 0x0022), VRs: []vr.VR{vr.Date}, Name: "Acquisition Date", Keyword: "AcquisitionDate", VM: "1"},
	{0x0008, 0x0023}: {Tag: New(0x0008, 0x0023), VRs: []vr.VR{vr.Date}, Name: "Content Date", Keyword: "ContentDate", VM: "1"},
	{0x0008, 0x0030}: {Tag: New(0x0008, 0x0030), VRs: []vr.VR{vr.Time}, Name: "Study Time", Keyword: "StudyTime", VM: "1"},
	{0x0008, 0x0031}: {Tag: New(0x0008, 0x0031), VRs: []vr.VR{vr.Time}, Name: "Series Time", Keyword: "SeriesTime", VM: "1"},
	{0x0008, 0x0032}: {Tag: New(0x0008, 0x0032), VRs: []vr.VR{vr.Time}, Name: "Acquisition Time", Keyword: "AcquisitionTime", VM: "1"},
	{0x0008, 0x0033}: {Tag: New(0x0008, 0x0033), VRs: []vr.VR{vr.Time}, Name: "Content Time", Keyword: "ContentTime", VM: "1"},
	{0x0008, 0x0050}: {Tag: New(0x0008, 0x0050), VRs: []vr.VR{vr.ShortString}, Name: "Accession Number", Keyword: "AccessionNumber", VM: "1"},
	{0x0008, 0x0052}: {Tag: New(0x0008, 0x0052), VRs: []vr.VR{vr.CodeString}, Name: "Query/Retrieve Level", Keyword: "QueryRetrieveLevel", VM: "1"},
	{0x0008, 0x0054}: {Tag: New(0x0008, 0x0054), VRs: []vr.VR{vr.ApplicationEntity}, Name: "Retrieve AE Title", Keyword: "RetrieveAETitle", VM: "1-n"},
	{0x0008, 0x0056}: {Tag: New(0x0008, 0x0056), VRs: []vr.VR{vr.CodeString}, Name: "Instance Availability", Keyword: "InstanceAvailability", VM: "1"},
	{0x0008, 0x0060}: {Tag: New(0x0008, 0x0060), VRs: []vr.VR{vr.CodeString}, Name: "Modality", Keyword: "Modality", VM: "1"},
	{0x0008, 0x0061}: {Tag: New(0x0008, 0x0061), VRs: []vr.VR{vr.CodeString}, Name: "Modalities in Study", Keyword: "ModalitiesInStudy", VM: "1-n"},
	{0x0008, 0x0070}: {Tag: New(0x0008, 0x0070), VRs: []vr.VR{vr.LongString}, Name: "Manufacturer", Keyword: "Manufacturer", VM: "1"},
	{0x0008, 0x0080}: {Tag: New(0x0008, 0x0080), VRs: []vr.VR{vr.LongString}, Name: "Institution Name", Keyword: "InstitutionName", VM: "1"},
	{0x0008, 0x0081}: {Tag: New(0x0008, 0x0081), VRs: []vr.VR{vr.ShortText}, Name: "Institution Address", Keyword: "InstitutionAddress", VM: "1"},
	{0x0008, 0x0090}: {Tag: New(0x0008, 0x0090), VRs: []vr.VR{vr.PersonName}, Name: "Referring Physician's Name", Keyword: "ReferringPhysicianName", VM: "1"},
	{0x0008, 0x0201}: {Tag: New(0x0008, 0x0201), VRs: []vr.VR{vr.ShortString}, Name: "Timezone Offset From UTC", Keyword: "TimezoneOffsetFromUTC", VM: "1"},
	{0x0008, 0x1010}: {Tag: New(0x0008, 0x1010), VRs: []vr.VR{vr.ShortString}, Name: "Station Name", Keyword: "StationName", VM: "1"},
	{0x0008, 0x1030}: {Tag: New(0x0008, 0x1030), VRs: []vr.VR{vr.LongString}, Name: "Study Description", Keyword: "StudyDescription", VM: "1"},
	{0x0008, 0x103E}: {Tag: New(0x0008, 0x103E), VRs: []vr.VR{vr.LongString}, Name: "Series Description", Keyword: "SeriesDescription", VM: "1"},
	{0x0008, 0x1040}: {Tag: New(0x0008, 0x1040), VRs: []vr.VR{vr.LongString}, Name: "Institutional Department Name", Keyword: "InstitutionalDepartmentName", VM: "1"},
	{0x0008, 0x1050}: {Tag: New(0x0008, 0x1050), VRs: []vr.VR{vr.PersonName}, Name: "Performing Physician's Name", Keyword: "PerformingPhysicianName", VM: "1-n"},
	{0x0008, 0x1060}: {Tag: New(0x0008, 0x1060), VRs: []vr.VR{vr.PersonName}, Name: "Name of Physician(s) Reading Study", Keyword: "NameOfPhysiciansReadingStudy", VM: "1-n"},
	{0x0008, 0x1070}: {Tag: New(0x0008, 0x1070), VRs: []vr.VR{vr.PersonName}, Name: "Operators' Name", Keyword: "OperatorsName", VM: "1-n"},
	{0x0008, 0x1090}: {Tag: New(0x0008, 0x1090), VRs: []vr.VR{vr.LongString}, Name: "Manufacturer's Model Name", Keyword: "ManufacturerModelName", VM: "1"},
	{0x0008, 0x1110}: {Tag: New(0x0008, 0x1110), VRs: []vr.VR{vr.SequenceOfItems}, Name: "Referenced Study Sequence", Keyword: "ReferencedStudySequence", VM: "1"},
	{0x0008, 0x1140}: {Tag: New(0x0008, 0x1140), VRs: []vr.VR{vr.SequenceOfItems}, Name: "Referenced Image Sequence", Keyword: "ReferencedImageSequence", VM: "1"},
	{0x0008, 0x2111}: {Tag: New(0x0008, 0x2111), VRs: []vr.VR{vr.ShortText}, Name: "Derivation Description", Keyword: "DerivationDescription", VM: "1"},

	// Patient (group 0010)
	{0x0010, 0x0000}: {Tag: New(0x0010, 0x0000), VRs: []vr.VR{vr.UnsignedLong}, Name: "Generic Group Length", Keyword: "GenericGroupLength", VM: "1"},
	{0x0010, 0x0010}: {Tag: New(0x0010, 0x0010), VRs: []vr.VR{vr.PersonName}, Name: "Patient's Name", Keyword: "PatientName", VM: "1"},
	{0x0010, 0x0020}: {Tag: New(0x0010, 0x0020), VRs: []vr.VR{vr.LongString}, Name: "Patient ID", Keyword: "PatientID", VM: "1"},
	{0x0010, 0x0021}: {Tag: New(0x0010, 0x0021), VRs: []vr.VR{vr.LongString}, Name: "Issuer of Patient ID", Keyword: "IssuerOfPatientID", VM: "1"},
	{0x0010, 0x0030}: {Tag: New(0x0010, 0x0030), VRs: []vr.VR{vr.Date}, Name: "Patient's Birth Date", Keyword: "PatientBirthDate", VM: "1"},
	{0x0010, 0x0032}: {Tag: New(0x0010, 0x0032), VRs: []vr.VR{vr.Time}, Name: "Patient's Birth Time", Keyword: "PatientBirthTime", VM: "1"},
	{0x0010, 0x0040}: {Tag: New(0x0010, 0x0040), VRs: []vr.VR{vr.CodeString}, Name: "Patient's Sex", Keyword: "PatientSex", VM: "1"},
	{0x0010, 0x1000}: {Tag: New(0x0010, 0x1000), VRs: []vr.VR{vr.LongString}, Name: "Other Patient IDs", Keyword: "OtherPatientIDs", VM: "1-n"},
	{0x0010, 0x1001}: {Tag: New(0x0010, 0x1001), VRs: []vr.VR{vr.PersonName}, Name: "Other Patient Names", Keyword: "OtherPatientNames", VM: "1-n"},
	{0x0010, 0x1010}: {Tag: New(0x0010, 0x1010), VRs: []vr.VR{vr.AgeString}, Name: "Patient's Age", Keyword: "PatientAge", VM: "1"},
	{0x0010, 0x1020}: {Tag: New(0x0010, 0x1020), VRs: []vr.VR{vr.DecimalString}, Name: "Patient's Size", Keyword: "PatientSize", VM: "1"},
	{0x0010, 0x1030}: {Tag: New(0x0010, 0x1030), VRs: []vr.VR{vr.DecimalString}, Name: "Patient's Weight", Keyword: "PatientWeight", VM: "1"},
	{0x0010, 0x2160}: {Tag: New(0x0010, 0x2160), VRs: []vr.VR{vr.ShortString}, Name: "Ethnic Group", Keyword: "EthnicGroup", VM: "1"},
	{0x0010, 0x4000}: {Tag: New(0x0010, 0x4000), VRs: []vr.VR{vr.LongText}, Name: "Patient Comments", Keyword: "PatientComments", VM: "1"},

	// Acquisition / Study (group 0020)
	{0x0020, 0x0000}: {Tag: New(0x0020, 0x0000), VRs: []vr.VR{vr.UnsignedLong}, Name: "Generic Group Length", Keyword: "GenericGroupLength", VM: "1"},
	{0x0020, 0x000D}: {Tag: New(0x0020, 0x000D), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "Study Instance UID", Keyword: "StudyInstanceUID", VM: "1"},
	{0x0020, 0x000E}: {Tag: New(0x0020, 0x000E), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "Series Instance UID", Keyword: "SeriesInstanceUID", VM: "1"},
	{0x0020, 0x0010}: {Tag: New(0x0020, 0x0010), VRs: []vr.VR{vr.ShortString}, Name: "Study ID", Keyword: "StudyID", VM: "1"},
	{0x0020, 0x0011}: {Tag: New(0x0020, 0x0011), VRs: []vr.VR{vr.IntegerString}, Name: "Series Number", Keyword: "SeriesNumber", VM: "1"},
	{0x0020, 0x0013}: {Tag: New(0x0020, 0x0013), VRs: []vr.VR{vr.IntegerString}, Name: "Instance Number", Keyword: "InstanceNumber", VM: "1"},
	{0x0020, 0x0052}: {Tag: New(0x0020, 0x0052), VRs: []vr.VR{vr.UniqueIdentifier}, Name: "Frame of Reference UID", Keyword: "FrameOfReferenceUID", VM: "1"},
	{0x0020, 0x1040}: {Tag: New(0x0020, 0x1040), VRs: []vr.VR{vr.LongString}, Name: "Position Reference Indicator", Keyword: "PositionReferenceIndicator", VM: "1"},

	// Image pixel description (group 0028)
	{0x0028, 0x0000}: {Tag: New(0x0028, 0x0000), VRs: []vr.VR{vr.UnsignedLong}, Name: "Generic Group Length", Keyword: "GenericGroupLength", VM: "1"},
	{0x0028, 0x0002}: {Tag: New(0x0028, 0x0002), VRs: []vr.VR{vr.UnsignedShort}, Name: "Samples per Pixel", Keyword: "SamplesPerPixel", VM: "1"},
	{0x0028, 0x0004}: {Tag: New(0x0028, 0x0004), VRs: []vr.VR{vr.CodeString}, Name: "Photometric Interpretation", Keyword: "PhotometricInterpretation", VM: "1"},
	{0x0028, 0x0006}: {Tag: New(0x0028, 0x0006), VRs: []vr.VR{vr.UnsignedShort}, Name: "Planar Configuration", Keyword: "PlanarConfiguration", VM: "1"},
	{0x0028, 0x0008}: {Tag: New(0x0028, 0x0008), VRs: []vr.VR{vr.IntegerString}, Name: "Number of Frames", Keyword: "NumberOfFrames", VM: "1"},
	{0x0028, 0x0010}: {Tag: New(0x0028, 0x0010), VRs: []vr.VR{vr.UnsignedShort}, Name: "Rows", Keyword: "Rows", VM: "1"},
	{0x0028, 0x0011}: {Tag: New(0x0028, 0x0011), VRs: []vr.VR{vr.UnsignedShort}, Name: "Columns", Keyword: "Columns", VM: "1"},
	{0x0028, 0x0100}: {Tag: New(0x0028, 0x0100), VRs: []vr.VR{vr.UnsignedShort}, Name: "Bits Allocated", Keyword: "BitsAllocated", VM: "1"},
	{0x0028, 0x0101}: {Tag: New(0x0028, 0x0101), VRs: []vr.VR{vr.UnsignedShort}, Name: "Bits Stored", Keyword: "BitsStored", VM: "1"},
	{0x0028, 0x0102}: {Tag: New(0x0028, 0x0102), VRs: []vr.VR{vr.UnsignedShort}, Name: "High Bit", Keyword: "HighBit", VM: "1"},
	{0x0028, 0x0103}: {Tag: New(0x0028, 0x0103), VRs: []vr.VR{vr.UnsignedShort}, Name: "Pixel Representation", Keyword: "PixelRepresentation", VM: "1"},

	// Study/Series/Instance counters used by QIDO responses
	{0x0020, 0x1206}: {Tag: New(0x0020, 0x1206), VRs: []vr.VR{vr.IntegerString}, Name: "Number of Study Related Series", Keyword: "NumberOfStudyRelatedSeries", VM: "1"},
	{0x0020, 0x1208}: {Tag: New(0x0020, 0x1208), VRs: []vr.VR{vr.IntegerString}, Name: "Number of Study Related Instances", Keyword: "NumberOfStudyRelatedInstances", VM: "1"},
	{0x0020, 0x1209}: {Tag: New(0x0020, 0x1209), VRs: []vr.VR{vr.IntegerString}, Name: "Number of Series Related Instances", Keyword: "NumberOfSeriesRelatedInstances", VM: "1"},

	// Pixel Data (group 7FE0)
	{0x7FE0, 0x0010}: {Tag: New(0x7FE0, 0x0010), VRs: []vr.VR{vr.OtherByte, vr.OtherWord}, Name: "Pixel Data", Keyword: "PixelData", VM: "1"},
}

// Well-known tag variables for the attributes this module reads or writes
// directly, so callers can reference tag.PatientName instead of spelling
// out group/element pairs.
var (
	FileMetaInformationGroupLength = New(0x0002, 0x0000)
	FileMetaInformationVersion     = New(0x0002, 0x0001)
	MediaStorageSOPClassUID        = New(0x0002, 0x0002)
	MediaStorageSOPInstanceUID     = New(0x0002, 0x0003)
	TransferSyntaxUID              = New(0x0002, 0x0010)
	ImplementationClassUID         = New(0x0002, 0x0012)
	ImplementationVersionName      = New(0x0002, 0x0013)
	SourceApplicationEntityTitle   = New(0x0002, 0x0016)

	SpecificCharacterSet         = New(0x0008, 0x0005)
	ImageType                    = New(0x0008, 0x0008)
	InstanceCreationDate         = New(0x0008, 0x0012)
	InstanceCreationTime         = New(0x0008, 0x0013)
	InstanceCreatorUID           = New(0x0008, 0x0014)
	SOPClassUID                  = New(0x0008, 0x0016)
	SOPInstanceUID               = New(0x0008, 0x0018)
	StudyDate                    = New(0x0008, 0x0020)
	SeriesDate                   = New(0x0008, 0x0021)
	AcquisitionDate              = New(0x0008, 0x0022)
	ContentDate                  = New(0x0008, 0x0023)
	StudyTime                    = New(0x0008, 0x0030)
	SeriesTime                   = New(0x0008, 0x0031)
	AcquisitionTime              = New(0x0008, 0x0032)
	ContentTime                  = New(0x0008, 0x0033)
	AccessionNumber              = New(0x0008, 0x0050)
	QueryRetrieveLevel           = New(0x0008, 0x0052)
	RetrieveAETitle              = New(0x0008, 0x0054)
	InstanceAvailability         = New(0x0008, 0x0056)
	Modality                     = New(0x0008, 0x0060)
	ModalitiesInStudy            = New(0x0008, 0x0061)
	Manufacturer                 = New(0x0008, 0x0070)
	InstitutionName              = New(0x0008, 0x0080)
	InstitutionAddress           = New(0x0008, 0x0081)
	ReferringPhysicianName       = New(0x0008, 0x0090)
	TimezoneOffsetFromUTC        = New(0x0008, 0x0201)
	StationName                  = New(0x0008, 0x1010)
	StudyDescription             = New(0x0008, 0x1030)
	SeriesDescription            = New(0x0008, 0x103E)
	InstitutionalDepartmentName  = New(0x0008, 0x1040)
	PerformingPhysicianName      = New(0x0008, 0x1050)
	NameOfPhysiciansReadingStudy = New(0x0008, 0x1060)
	OperatorsName                = New(0x0008, 0x1070)
	ManufacturerModelName        = New(0x0008, 0x1090)
	ReferencedStudySequence      = New(0x0008, 0x1110)
	ReferencedImageSequence      = New(0x0008, 0x1140)
	DerivationDescription        = New(0x0008, 0x2111)

	PatientName       = New(0x0010, 0x0010)
	PatientID         = New(0x0010, 0x0020)
	IssuerOfPatientID = New(0x0010, 0x0021)
	PatientBirthDate  = New(0x0010, 0x0030)
	PatientBirthTime  = New(0x0010, 0x0032)
	PatientSex        = New(0x0010, 0x0040)
	OtherPatientIDs   = New(0x0010, 0x1000)
	OtherPatientNames = New(0x0010, 0x1001)
	PatientAge        = New(0x0010, 0x1010)
	PatientSize       = New(0x0010, 0x1020)
	PatientWeight     = New(0x0010, 0x1030)
	EthnicGroup       = New(0x0010, 0x2160)
	PatientComments   = New(0x0010, 0x4000)

	StudyInstanceUID           = New(0x0020, 0x000D)
	SeriesInstanceUID          = New(0x0020, 0x000E)
	StudyID                    = New(0x0020, 0x0010)
	SeriesNumber               = New(0x0020, 0x0011)
	InstanceNumber             = New(0x0020, 0x0013)
	FrameOfReferenceUID        = New(0x0020, 0x0052)
	PositionReferenceIndicator = New(0x0020, 0x1040)

	NumberOfStudyRelatedSeries     = New(0x0020, 0x1206)
	NumberOfStudyRelatedInstances  = New(0x0020, 0x1208)
	NumberOfSeriesRelatedInstances = New(0x0020, 0x1209)

	SamplesPerPixel           = New(0x0028, 0x0002)
	PhotometricInterpretation = New(0x0028, 0x0004)
	PlanarConfiguration       = New(0x0028, 0x0006)
	NumberOfFrames            = New(0x0028, 0x0008)
	Rows                      = New(0x0028, 0x0010)
	Columns                   = New(0x0028, 0x0011)
	BitsAllocated             = New(0x0028, 0x0100)
	BitsStored                = New(0x0028, 0x0101)
	HighBit                   = New(0x0028, 0x0102)
	PixelRepresentation       = New(0x0028, 0x0103)

	PixelData = New(0x7FE0, 0x0010)
)
