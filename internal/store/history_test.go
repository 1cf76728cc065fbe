package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/enhance"
)

var _ enhance.Recorder = (*Store)(nil)

func TestRecord_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)

	require.NoError(t, s.Record(ctx, createTestReport("run-1", started)))

	run, outcomes, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, started, run.Started)
	assert.Equal(t, 150*time.Millisecond, run.Duration())
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, []string{"/out/classes"}, run.Roots)
	assert.Equal(t, []string{"com.x"}, run.Packages)
	assert.Equal(t, 1, run.Enhanced)
	assert.Equal(t, 1, run.Unchanged)
	assert.Equal(t, int64(3), run.FallbackHits)

	require.Len(t, outcomes, 2)
	assert.Equal(t, "com.x.Foo", outcomes[0].Class)
	assert.Equal(t, 1, outcomes[0].Seq)
	assert.Equal(t, []string{"entity", "field-access"}, outcomes[0].Passes)
	assert.True(t, outcomes[0].Changed())
	assert.Equal(t, "com.x.query.QFoo", outcomes[1].Class)
	assert.Equal(t, []string{}, outcomes[1].Passes)
	assert.False(t, outcomes[1].Changed())
}

func TestRecord_ReplacesSameRunID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	require.NoError(t, s.Record(ctx, createTestReport("run-1", started)))
	rep := createTestReport("run-1", started)
	rep.Outcomes = rep.Outcomes[:1]
	require.NoError(t, s.Record(ctx, rep))

	_, outcomes, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestRecord_StoresErrors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rep := createTestReport("run-err", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	rep.Status = enhance.RunAborted
	rep.Err = &enhance.RunError{Code: enhance.CodeSetupFailure, Message: "cannot read manifest"}
	rep.Outcomes[1].Err = errors.New("boom")
	require.NoError(t, s.Record(ctx, rep))

	run, outcomes, err := s.ReadRun(ctx, "run-err")
	require.NoError(t, err)
	assert.Equal(t, "aborted", run.Status)
	assert.Equal(t, "SETUP_FAILURE: cannot read manifest", run.Error)
	assert.Equal(t, "boom", outcomes[1].Error)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, _, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, s.Record(ctx, createTestReport(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"run-c", "run-b", "run-a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestListRuns_EmptyStore(t *testing.T) {
	s := createTestStore(t)
	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestClassHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, createTestReport("run-2", base.Add(time.Hour))))
	require.NoError(t, s.Record(ctx, createTestReport("run-1", base)))

	history, err := s.ClassHistory(ctx, "com.x.Foo")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "run-1", history[0].RunID)
	assert.Equal(t, "run-2", history[1].RunID)

	none, err := s.ClassHistory(ctx, "com.x.Nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriteRun_WithoutOutcomes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, Run{ID: "bare", Status: "cancelled"}))
	run, outcomes, err := s.ReadRun(ctx, "bare")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", run.Status)
	assert.True(t, run.Started.IsZero())
	assert.Equal(t, []string{}, run.Roots)
	assert.Empty(t, outcomes)
}

func TestMarshalStrings(t *testing.T) {
	s, err := marshalStrings(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)

	s, err = marshalStrings([]string{"a<b", "c"})
	require.NoError(t, err)
	assert.Equal(t, `["a<b","c"]`, s)

	list, err := unmarshalStrings(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a<b", "c"}, list)

	_, err = unmarshalStrings("not json")
	assert.Error(t, err)
}
