package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/internal/tracker"
)

func newStoreDataset(t *testing.T, studyUID string) *dicom.DataSet {
	t.Helper()
	ds := dicom.NewDataSet()
	require.NoError(t, ds.SetStudyInstanceUID(studyUID))
	require.NoError(t, ds.SetSeriesInstanceUID("1.2.3.4.1"))
	require.NoError(t, ds.SetSOPInstanceUID("1.2.3.4.1.1"))
	return ds
}

func TestTracker_RegisterValidateRecord_ResolvesOnBothGates(t *testing.T) {
	tr := tracker.New()
	defer tr.Close()

	correlationID, future, err := tr.Register("1.2.3.4", "", "", time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, correlationID)

	valid, gotID := tr.Validate("1.2.3.4", "1.2.3.4.1", "1.2.3.4.1.1")
	require.True(t, valid)
	assert.Equal(t, correlationID, gotID)

	ds := newStoreDataset(t, "1.2.3.4")
	require.NoError(t, tr.Record(correlationID, ds))

	// Recording without CompleteMove must not resolve the future yet.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = future.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tr.CompleteMove(correlationID, 1))

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	res, err := future.Wait(ctx2)
	require.NoError(t, err)
	require.Len(t, res.Datasets, 1)
	assert.Equal(t, 0, tr.Pending())
}

func TestTracker_CompleteMoveBeforeRecord_ResolvesOnceCountReached(t *testing.T) {
	tr := tracker.New()
	defer tr.Close()

	correlationID, future, err := tr.Register("1.2.3.5", "1.2.3.5.1", "", time.Second)
	require.NoError(t, err)

	// Terminal C-MOVE response reports 2 completed sub-operations before
	// either store has arrived; the protocol gives no ordering guarantee.
	require.NoError(t, tr.CompleteMove(correlationID, 2))

	ds1 := newStoreDataset(t, "1.2.3.5")
	require.NoError(t, tr.Record(correlationID, ds1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = future.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "must not resolve until the expected count is reached")

	ds2 := newStoreDataset(t, "1.2.3.5")
	require.NoError(t, tr.Record(correlationID, ds2))

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	res, err := future.Wait(ctx2)
	require.NoError(t, err)
	assert.Len(t, res.Datasets, 2)
}

func TestTracker_Validate_NarrowerUIDsMustMatch(t *testing.T) {
	tr := tracker.New()
	defer tr.Close()

	_, _, err := tr.Register("1.2.3.6", "1.2.3.6.1", "", time.Second)
	require.NoError(t, err)

	// Study matches, requested series matches the registered series: valid.
	valid, _ := tr.Validate("1.2.3.6", "1.2.3.6.1", "1.2.3.6.1.1")
	assert.True(t, valid)

	// Study matches but series does not: invalid.
	valid, _ = tr.Validate("1.2.3.6", "1.2.3.6.2", "1.2.3.6.2.1")
	assert.False(t, valid)

	// Study does not match at all: invalid.
	valid, _ = tr.Validate("9.9.9.9", "1.2.3.6.1", "1.2.3.6.1.1")
	assert.False(t, valid)
}

func TestTracker_Validate_UnspecifiedSeriesAcceptsAnySeries(t *testing.T) {
	tr := tracker.New()
	defer tr.Close()

	_, _, err := tr.Register("1.2.3.7", "", "", time.Second)
	require.NoError(t, err)

	valid, _ := tr.Validate("1.2.3.7", "1.2.3.7.1", "1.2.3.7.1.1")
	assert.True(t, valid)
	valid, _ = tr.Validate("1.2.3.7", "1.2.3.7.99", "1.2.3.7.99.1")
	assert.True(t, valid)
}

func TestTracker_Record_UnknownCorrelationID(t *testing.T) {
	tr := tracker.New()
	defer tr.Close()

	ds := newStoreDataset(t, "1.2.3.8")
	err := tr.Record("does-not-exist", ds)
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestTracker_Cancel_RejectsFutureWithReason(t *testing.T) {
	tr := tracker.New()
	defer tr.Close()

	correlationID, future, err := tr.Register("1.2.3.9", "", "", time.Second)
	require.NoError(t, err)

	require.NoError(t, tr.Cancel(correlationID, nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = future.Wait(ctx)
	assert.ErrorIs(t, err, tracker.ErrCancelled)
	assert.Equal(t, 0, tr.Pending())

	// Cancelling an already-resolved entry reports not found.
	err = tr.Cancel(correlationID, nil)
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestTracker_Sweep_RejectsExpiredEntriesWithTimeout(t *testing.T) {
	tr := tracker.NewWithSweepInterval(20 * time.Millisecond)
	defer tr.Close()

	correlationID, future, err := tr.Register("1.2.3.10", "", "", 10*time.Millisecond)
	require.NoError(t, err)

	valid, gotID := tr.Validate("1.2.3.10", "", "")
	require.True(t, valid)
	assert.Equal(t, correlationID, gotID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = future.Wait(ctx)
	require.ErrorIs(t, err, tracker.ErrTimeout)
	assert.Equal(t, 0, tr.Pending())
}

func TestTracker_Pending_ReflectsOutstandingMoves(t *testing.T) {
	tr := tracker.New()
	defer tr.Close()

	assert.Equal(t, 0, tr.Pending())

	id1, _, err := tr.Register("1.2.3.11", "", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Pending())

	_, _, err = tr.Register("1.2.3.12", "", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Pending())

	require.NoError(t, tr.Cancel(id1, nil))
	assert.Equal(t, 1, tr.Pending())
}
