package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

func pollResult(numbers ...int) []model.PullRequest {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	prs := make([]model.PullRequest, 0, len(numbers))
	for _, n := range numbers {
		prs = append(prs, model.PullRequest{
			RepoFullName: "acme/widgets",
			Number:       n,
			State:        model.PRStateOpen,
			UpdatedAt:    now,
		})
	}
	return prs
}

func byNumber(prs []model.PullRequest) map[int]model.PullRequest {
	m := make(map[int]model.PullRequest, len(prs))
	for _, pr := range prs {
		m[pr.Number] = pr
	}
	return m
}

func TestDiffRecords_FirstPollIsAllNew(t *testing.T) {
	cs := diffRecords(pollResult(1, 2, 3), nil)

	assert.Len(t, cs.added, 3)
	assert.Empty(t, cs.updated)
	assert.Empty(t, cs.closed)
}

func TestDiffRecords_UnchangedTimestampsAreQuiet(t *testing.T) {
	prs := pollResult(1, 2)

	cs := diffRecords(prs, byNumber(prs))
	assert.True(t, cs.empty())
}

func TestDiffRecords_TimestampIsTheOnlyChangeSignal(t *testing.T) {
	prs := pollResult(1)
	previous := byNumber(prs)

	// Content changes alone do not register.
	changed := pollResult(1)
	changed[0].Title = "retitled"
	cs := diffRecords(changed, previous)
	assert.True(t, cs.empty())

	// A bumped timestamp does.
	changed[0].UpdatedAt = changed[0].UpdatedAt.Add(time.Minute)
	cs = diffRecords(changed, previous)
	require.Len(t, cs.updated, 1)
	assert.Equal(t, 1, cs.updated[0].Number)
}

func TestDiffRecords_AbsenceInfersClosed(t *testing.T) {
	previous := byNumber(pollResult(1, 2, 3))

	cs := diffRecords(pollResult(1, 3), previous)

	assert.Empty(t, cs.added)
	assert.Empty(t, cs.updated)
	require.Len(t, cs.closed, 1)
	assert.Equal(t, 2, cs.closed[0].Number)
}

func TestDiffRecords_MixedCycle(t *testing.T) {
	previous := byNumber(pollResult(1, 2))

	current := pollResult(1, 3)
	current[0].UpdatedAt = current[0].UpdatedAt.Add(time.Minute)

	cs := diffRecords(current, previous)

	require.Len(t, cs.added, 1)
	assert.Equal(t, 3, cs.added[0].Number)
	require.Len(t, cs.updated, 1)
	assert.Equal(t, 1, cs.updated[0].Number)
	require.Len(t, cs.closed, 1)
	assert.Equal(t, 2, cs.closed[0].Number)
}
