package jobs

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(logrus.New(), time.Hour)

	job, err := store.Create("prop-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "prop-1", job.PropertyID)
	assert.Equal(t, "starting", job.Stage)
	assert.Equal(t, "in_progress", job.Status)

	got, err := store.Get(job.ID)
	assert.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	byProp, err := store.GetByProperty("prop-1")
	assert.NoError(t, err)
	assert.Equal(t, job.ID, byProp.ID)
}

func TestStore_GetUnknown(t *testing.T) {
	store := NewStore(logrus.New(), time.Hour)

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByProperty("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RejectsConcurrentJobForProperty(t *testing.T) {
	store := NewStore(logrus.New(), time.Hour)

	_, err := store.Create("prop-1")
	assert.NoError(t, err)

	_, err = store.Create("prop-1")
	assert.ErrorIs(t, err, ErrInProgress)

	// Ad-hoc jobs never conflict with each other
	_, err = store.Create("")
	assert.NoError(t, err)
	_, err = store.Create("")
	assert.NoError(t, err)
}

func TestStore_TerminalJobReplacedOnResubmit(t *testing.T) {
	store := NewStore(logrus.New(), time.Hour)

	first, _ := store.Create("prop-1")
	err := store.Update(first.ID, func(j *Job) {
		j.Status = "completed"
		j.Stage = "completed"
	})
	assert.NoError(t, err)

	second, err := store.Create("prop-1")
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// The replaced job is gone; the property index points at the new one
	_, err = store.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	byProp, err := store.GetByProperty("prop-1")
	assert.NoError(t, err)
	assert.Equal(t, second.ID, byProp.ID)
}

func TestStore_TerminalJobsAreImmutable(t *testing.T) {
	store := NewStore(logrus.New(), time.Hour)

	job, _ := store.Create("prop-1")
	_ = store.Update(job.ID, func(j *Job) {
		j.Status = "failed"
		j.Error = "stage analyzing_photos: vision model unavailable"
	})

	err := store.Update(job.ID, func(j *Job) {
		j.Status = "in_progress"
		j.Stage = "generating_evaluation"
	})
	assert.NoError(t, err)

	got, _ := store.Get(job.ID)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "starting", got.Stage)
}

func TestStore_UpdateUnknown(t *testing.T) {
	store := NewStore(logrus.New(), time.Hour)
	err := store.Update("missing", func(j *Job) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ReapEvictsExpiredTerminalJobs(t *testing.T) {
	store := NewStore(logrus.New(), 10*time.Millisecond)

	done, _ := store.Create("prop-done")
	_ = store.Update(done.ID, func(j *Job) { j.Status = "completed" })

	live, _ := store.Create("prop-live")

	time.Sleep(20 * time.Millisecond)
	store.reap()

	_, err := store.Get(done.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetByProperty("prop-done")
	assert.ErrorIs(t, err, ErrNotFound)

	// In-flight jobs are never reaped regardless of age
	_, err = store.Get(live.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}
