package uid

// The handful of UIDs the gateway references by name. Everything else is
// looked up through the registry by its dotted string.
var (
	// Verification SOP Class (C-ECHO).
	VerificationSOPClass = MustParse("1.2.840.10008.1.1")

	// Study Root Query/Retrieve Information Model.
	StudyRootQueryRetrieveInformationModelFind = MustParse("1.2.840.10008.5.1.4.1.2.2.1")
	StudyRootQueryRetrieveInformationModelMove = MustParse("1.2.840.10008.5.1.4.1.2.2.2")
	StudyRootQueryRetrieveInformationModelGet  = MustParse("1.2.840.10008.5.1.4.1.2.2.3")

	// Transfer syntaxes the codec layer encodes and decodes natively.
	ImplicitVRLittleEndian = MustParse("1.2.840.10008.1.2")
	ExplicitVRLittleEndian = MustParse("1.2.840.10008.1.2.1")
	ExplicitVRBigEndian    = MustParse("1.2.840.10008.1.2.2")
)
