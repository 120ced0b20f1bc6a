package activity

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayflow/stayflow-backend/internal/models"
)

func TestBoltRecorderWritesAndReadsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.db")
	r, err := NewBoltRecorder(path, 16)
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	r.Record(Event{Bucket: BucketNotifications, Phone: "9876543210", Type: "BILL", At: base})
	r.Record(Event{Bucket: BucketNotifications, Phone: "9876543210", Type: "REMINDER", At: base.Add(time.Hour)})
	r.Record(Event{Bucket: BucketNotifications, Phone: "9000000000", Type: "BILL", At: base.Add(2 * time.Hour)})
	r.Record(Media("9876543210", MediaAadhaar, &models.MediaRef{ID: "MEDIA1"}))
	require.NoError(t, r.Close())

	r2, err := NewBoltRecorder(path, 16)
	require.NoError(t, err)
	defer r2.Close()

	got, err := r2.Recent(BucketNotifications, "+919876543210", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "REMINDER", got[0].Type)
	assert.Equal(t, "919876543210", got[0].Phone)

	media, err := r2.Recent(BucketMedia, "", 0)
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "MEDIA1", media[0].MediaID)
	assert.Equal(t, MediaAadhaar, media[0].Type)
}

func TestRecordDropsWhenBufferFull(t *testing.T) {
	r := &BoltRecorder{events: make(chan Event, 1)}
	r.Record(Event{Bucket: BucketActivity})

	assert.NotPanics(t, func() {
		r.Record(Event{Bucket: BucketActivity})
	})
	assert.Len(t, r.events, 1)
}

func TestIncomingCapturesImage(t *testing.T) {
	ev := Incoming(models.InboundMessage{From: "919876543210", Body: "", Image: &models.MediaRef{ID: "IMG1", Path: "/tmp/x.jpg"}})
	assert.Equal(t, BucketActivity, ev.Bucket)
	assert.Equal(t, "IMG1", ev.MediaID)
	assert.Equal(t, "/tmp/x.jpg", ev.MediaPath)
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	r, err := NewBoltRecorder(filepath.Join(t.TempDir(), "activity.db"), 4)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.NotPanics(t, func() {
		r.Record(Notification("9876543210", "Ravi", "BILL", "late event"))
	})
	assert.NoError(t, r.Close())
}
