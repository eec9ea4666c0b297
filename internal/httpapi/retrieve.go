package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/element"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/uid"
	"github.com/codeninja55/dicom-gateway/dicom/value"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
	"github.com/codeninja55/dicom-gateway/internal/config"
	"github.com/codeninja55/dicom-gateway/internal/tracker"
)

// retrieveLevel identifies which UID triple a retrieval targets. Retrieval
// granularity always matches the requested URL level exactly: the gateway
// never broadens an instance request into a series fetch or vice versa.
type retrieveLevel struct {
	studyUID    string
	seriesUID   string
	instanceUID string
}

// retrieve fetches the instances for lvl from the primary peer, using
// C-GET (inline) or C-MOVE (tracker-correlated) per g.Config.UseCGet.
func (g *Gateway) retrieve(ctx context.Context, lvl retrieveLevel) ([]*dicom.DataSet, error) {
	release, err := g.acquireAssociation(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire association slot: %w", err)
	}
	defer release()

	if err := g.peerRateLimit(ctx, 0); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	own := g.Config.DIMSEProxySettings.ProxyServer
	peer := g.Config.PrimaryPeer()

	if g.Config.UseCGet {
		return g.retrieveCGet(ctx, own, peer, lvl)
	}
	return g.retrieveCMove(ctx, own, peer, lvl)
}

func (g *Gateway) retrieveCGet(ctx context.Context, own, peer config.AEEndpoint, lvl retrieveLevel) ([]*dicom.DataSet, error) {
	query, err := queryDatasetForLevel(lvl)
	if err != nil {
		return nil, err
	}

	client, err := newClient(ctx, own, peer, moveGetContexts(uid.StudyRootQueryRetrieveInformationModelGet.String()))
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close(ctx) }()

	started := time.Now()
	var results []*dicom.DataSet
	err = client.Get(ctx, uid.StudyRootQueryRetrieveInformationModelGet.String(), query, func(ds *dicom.DataSet) error {
		results = append(results, ds)
		return nil
	})
	if g.Metrics != nil {
		g.Metrics.CGetDuration.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (g *Gateway) retrieveCMove(ctx context.Context, own, peer config.AEEndpoint, lvl retrieveLevel) ([]*dicom.DataSet, error) {
	query, err := queryDatasetForLevel(lvl)
	if err != nil {
		return nil, err
	}

	correlationID, future, err := g.Tracker.Register(lvl.studyUID, lvl.seriesUID, lvl.instanceUID, tracker.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("register tracker: %w", err)
	}

	client, err := newClient(ctx, own, peer, singleContext(uid.StudyRootQueryRetrieveInformationModelMove.String()))
	if err != nil {
		_ = g.Tracker.Cancel(correlationID, err)
		return nil, err
	}
	defer func() { _ = client.Close(ctx) }()

	started := time.Now()
	moveResult, err := client.Move(ctx, uid.StudyRootQueryRetrieveInformationModelMove.String(), own.AET, query)
	if err != nil {
		_ = g.Tracker.Cancel(correlationID, err)
		return nil, fmt.Errorf("C-MOVE: %w", err)
	}

	if completeErr := g.Tracker.CompleteMove(correlationID, moveResult.Completed); completeErr != nil {
		return nil, fmt.Errorf("complete move: %w", completeErr)
	}

	result, err := future.Wait(ctx)
	if g.Metrics != nil {
		g.Metrics.CMoveDuration.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("await C-STORE stream: %w", err)
	}

	if moveResult.Failed > 0 && len(result.Datasets) == 0 {
		return nil, fmt.Errorf("C-MOVE reported %d failed sub-operations and delivered no instances", moveResult.Failed)
	}

	return result.Datasets, nil
}

// queryDatasetForLevel builds the C-FIND/C-MOVE/C-GET identifier dataset
// (StudyInstanceUID, optionally SeriesInstanceUID/SOPInstanceUID, and the
// matching QueryRetrieveLevel) for a retrieval at lvl's granularity.
func queryDatasetForLevel(lvl retrieveLevel) (*dicom.DataSet, error) {
	ds := dicom.NewDataSet()

	level := "STUDY"
	switch {
	case lvl.instanceUID != "":
		level = "IMAGE"
	case lvl.seriesUID != "":
		level = "SERIES"
	}

	levelVal, err := value.NewStringValue(vr.CodeString, []string{level})
	if err != nil {
		return nil, fmt.Errorf("build QueryRetrieveLevel value: %w", err)
	}
	levelElem, err := element.NewElement(tag.QueryRetrieveLevel, vr.CodeString, levelVal)
	if err != nil {
		return nil, fmt.Errorf("build QueryRetrieveLevel element: %w", err)
	}
	if err := ds.Add(levelElem); err != nil {
		return nil, fmt.Errorf("add QueryRetrieveLevel element: %w", err)
	}

	if err := ds.SetStudyInstanceUID(lvl.studyUID); err != nil {
		return nil, fmt.Errorf("set StudyInstanceUID: %w", err)
	}
	if lvl.seriesUID != "" {
		if err := ds.SetSeriesInstanceUID(lvl.seriesUID); err != nil {
			return nil, fmt.Errorf("set SeriesInstanceUID: %w", err)
		}
	}
	if lvl.instanceUID != "" {
		if err := ds.SetSOPInstanceUID(lvl.instanceUID); err != nil {
			return nil, fmt.Errorf("set SOPInstanceUID: %w", err)
		}
	}

	return ds, nil
}
