package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStore_InsertOrIgnore(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	n, err := s.SaveEmails(ctx, []*core.Email{{ID: "a", Subject: "first"}, {ID: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SaveEmails(ctx, []*core.Email{{ID: "a", Subject: "second"}, {ID: "c"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	email, err := s.GetEmail(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "first", email.Subject)

	missing, err := s.GetEmail(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordStore_Recent(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()
	_, err := s.SaveEmails(ctx, []*core.Email{
		{ID: "old", Date: core.Int64Ptr(100)},
		{ID: "undated"},
		{ID: "new", Date: core.Int64Ptr(300)},
	})
	require.NoError(t, err)

	recent, err := s.GetRecentEmails(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "new", recent[0].ID)
	assert.Equal(t, "old", recent[1].ID)
	assert.Equal(t, "undated", recent[2].ID)
}

func TestRecordStore_NonPositiveLimits(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()
	_, err := s.SaveEmails(ctx, []*core.Email{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	require.NoError(t, err)
	for i := 0; i < storage.DefaultRecentJobs+5; i++ {
		_, err := s.StartJob(ctx, core.JobTypeEmailExtraction)
		require.NoError(t, err)
	}

	recent, err := s.GetRecentEmails(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	listed, err := s.ListEmails(ctx, 1, -1)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	listed, err = s.ListEmails(ctx, -3, 2)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	jobs, err := s.GetRecentJobs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, storage.DefaultRecentJobs)
}

func TestRecordStore_JobTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	job, err := s.StartJob(ctx, core.JobTypeEmailExtraction)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusRunning, job.Status)

	require.NoError(t, s.CompleteJob(ctx, job.ID, 4))
	err = s.FailJob(ctx, job.ID, "late")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	stored, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, stored.Status)
	assert.Equal(t, 4, stored.RecordsProcessed)
	assert.Nil(t, stored.ErrorMessage)
}

func TestRecordStore_InjectedErrors(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()
	boom := errors.New("boom")
	s.SaveEmailsErr = boom

	_, err := s.SaveEmails(ctx, []*core.Email{{ID: "a"}})
	assert.ErrorIs(t, err, boom)

	count, err := s.CountEmails(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
