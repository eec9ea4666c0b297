package httpapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/uid"
	"github.com/codeninja55/dicom-gateway/dimse/dul"
	"github.com/codeninja55/dicom-gateway/dimse/scu"
	"github.com/codeninja55/dicom-gateway/internal/config"
	"github.com/codeninja55/dicom-gateway/internal/translator"
)

// commonTransferSyntaxes are proposed for every presentation context this
// gateway's SCU opens, uncompressed first. The SCU itself doesn't pick the
// result (the SCP peer does), but proposing them in this order matches what
// most PACS expect to see first.
var commonTransferSyntaxes = []string{
	"1.2.840.10008.1.2.1", // Explicit VR Little Endian
	"1.2.840.10008.1.2",   // Implicit VR Little Endian
	"1.2.840.10008.1.2.2", // Explicit VR Big Endian
}

// maxStorageContexts caps how many Storage SOP Class presentation contexts
// are proposed on a C-GET association: a presentation context ID is a single
// odd byte (1,3,...,255), so at most 128 contexts fit in one association
// regardless of how many Storage SOP Classes the dictionary knows about.
const maxStorageContexts = 120

// storageAbstractSyntaxes returns every Storage SOP Class UID known to the
// dicom/uid registry, sorted for deterministic context-id assignment. The
// registry has no dedicated "Storage" Type, so classes are identified by the
// PS3.6 naming convention every Storage SOP Class follows.
func storageAbstractSyntaxes() []string {
	var out []string
	for _, info := range uid.FindAllByType(uid.TypeSOPClass) {
		if info.Retired {
			continue
		}
		if strings.Contains(info.Name, "Storage") {
			out = append(out, info.UID)
		}
	}
	sort.Strings(out)
	if len(out) > maxStorageContexts {
		out = out[:maxStorageContexts]
	}
	return out
}

// contextIDAllocator yields the next odd presentation-context id, starting at 1.
type contextIDAllocator struct{ next uint8 }

func (a *contextIDAllocator) allocate() uint8 {
	id := a.next*2 + 1
	a.next++
	return id
}

// singleContext builds the one presentation context needed for a C-FIND or
// C-MOVE operation against abstractSyntax (one of the Study-Root Q/R
// Find/Move/Get SOP classes).
func singleContext(abstractSyntax string) []dul.PresentationContextRQ {
	return []dul.PresentationContextRQ{{
		ID:               1,
		AbstractSyntax:   abstractSyntax,
		TransferSyntaxes: commonTransferSyntaxes,
	}}
}

// moveGetContexts builds the presentation contexts for a C-GET association:
// the Get SOP class itself plus every Storage SOP Class, since C-GET
// delivers instances as inline C-STORE sub-operations on the same
// association.
func moveGetContexts(getAbstractSyntax string) []dul.PresentationContextRQ {
	alloc := &contextIDAllocator{}
	contexts := []dul.PresentationContextRQ{{
		ID:               alloc.allocate(),
		AbstractSyntax:   getAbstractSyntax,
		TransferSyntaxes: commonTransferSyntaxes,
	}}
	for _, sopClass := range storageAbstractSyntaxes() {
		contexts = append(contexts, dul.PresentationContextRQ{
			ID:               alloc.allocate(),
			AbstractSyntax:   sopClass,
			TransferSyntaxes: commonTransferSyntaxes,
		})
	}
	return contexts
}

// newClient dials and associates an SCU client to peer for the given
// presentation contexts, using own as the calling AE title.
func newClient(ctx context.Context, own config.AEEndpoint, peer config.AEEndpoint, contexts []dul.PresentationContextRQ) (*scu.Client, error) {
	client := scu.NewClient(scu.Config{
		CallingAETitle:       own.AET,
		CalledAETitle:        peer.AET,
		RemoteAddr:           fmt.Sprintf("%s:%d", peer.IP, peer.Port),
		PresentationContexts: contexts,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("associate with %s: %w", peer.AET, err)
	}
	return client, nil
}

// echo performs a single C-ECHO against peer.
func echo(ctx context.Context, own, peer config.AEEndpoint) error {
	client, err := newClient(ctx, own, peer, singleContext(uid.VerificationSOPClass.String()))
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()
	return client.Echo(ctx)
}

// findLevel issues a Study-Root C-FIND at the given level and returns every
// matched dataset from the Pending responses.
func findLevel(ctx context.Context, own, peer config.AEEndpoint, level translator.Level, query *dicom.DataSet) ([]*dicom.DataSet, error) {
	client, err := newClient(ctx, own, peer, singleContext(uid.StudyRootQueryRetrieveInformationModelFind.String()))
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close(ctx) }()

	var results []*dicom.DataSet
	err = client.Find(ctx, string(level), uid.StudyRootQueryRetrieveInformationModelFind.String(), query, func(ds *dicom.DataSet) error {
		results = append(results, ds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
