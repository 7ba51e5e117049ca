package stager

import (
	"context"
	"encoding/json"
	"testing"

	"chart-revisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRevisionsRepo is a testify mock of repository.RevisionsRepo.
type MockRevisionsRepo struct {
	mock.Mock
}

func (m *MockRevisionsRepo) InsertRevisions(ctx context.Context, revs []*models.SuggestedRevision) error {
	args := m.Called(ctx, revs)
	return args.Error(0)
}

func (m *MockRevisionsRepo) ConflictingChartIDs(ctx context.Context, chartIDs []int64) (map[int64][]int64, error) {
	args := m.Called(ctx, chartIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64][]int64), args.Error(1)
}

func (m *MockRevisionsRepo) GetRevision(ctx context.Context, id int64) (*models.SuggestedRevision, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SuggestedRevision), args.Error(1)
}

func (m *MockRevisionsRepo) UpdateStatus(ctx context.Context, id int64, from, to models.RevisionStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func cfgFromJSON(t *testing.T, raw string) *models.ChartConfig {
	t.Helper()
	cfg := &models.ChartConfig{}
	require.NoError(t, json.Unmarshal([]byte(raw), cfg))
	return cfg
}

func TestDiffIsOrderIndependent(t *testing.T) {
	s := New(nil, "tester", zap.NewNop())

	a := cfgFromJSON(t, `{"id": 1, "version": 1, "title": "A", "note": "x"}`)
	b := cfgFromJSON(t, `{"note": "x", "title": "A", "version": 1, "id": 1}`)
	changed, err := s.Diff(a, b)
	require.NoError(t, err)
	assert.False(t, changed)

	c := cfgFromJSON(t, `{"id": 1, "version": 1, "title": "B", "note": "x"}`)
	changed, err = s.Diff(a, c)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestStageReturnsNilWhenUnchanged(t *testing.T) {
	s := New(nil, "tester", zap.NewNop())
	cfg := cfgFromJSON(t, `{"id": 5, "version": 3, "title": "A"}`)

	same, err := cfg.Clone()
	require.NoError(t, err)
	rev, err := s.Stage(models.Chart{ID: 5, Config: cfg}, same)
	require.NoError(t, err)
	assert.Nil(t, rev)
}

func TestStageBumpsVersionAndSetsPending(t *testing.T) {
	s := New(nil, "tester", zap.NewNop())
	orig := cfgFromJSON(t, `{"id": 5, "version": 3, "title": "A"}`)
	updated := cfgFromJSON(t, `{"id": 5, "version": 3, "title": "B"}`)

	rev, err := s.Stage(models.Chart{ID: 5, Config: orig}, updated)
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, int64(5), rev.ChartID)
	assert.Equal(t, models.StatusPending, rev.Status)
	assert.Equal(t, "tester", rev.CreatedBy)
	assert.Equal(t, int64(3), rev.OriginalConfig.Version)
	assert.Equal(t, int64(4), rev.SuggestedConfig.Version)
	// the caller's config is not version-bumped in place
	assert.Equal(t, int64(3), updated.Version)
}

func testRevision(chartID int64) *models.SuggestedRevision {
	return &models.SuggestedRevision{
		ChartID:         chartID,
		OriginalConfig:  &models.ChartConfig{ID: chartID, Version: 1},
		SuggestedConfig: &models.ChartConfig{ID: chartID, Version: 2},
		Status:          models.StatusPending,
		CreatedBy:       "tester",
	}
}

func TestSubmitBatchRejectsDuplicateChartIDs(t *testing.T) {
	repo := &MockRevisionsRepo{}
	s := New(repo, "tester", zap.NewNop())

	err := s.SubmitBatch(context.Background(), []*models.SuggestedRevision{
		testRevision(7), testRevision(8), testRevision(7),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateChartInBatch)
	repo.AssertNotCalled(t, "InsertRevisions", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ConflictingChartIDs", mock.Anything, mock.Anything)
}

func TestSubmitBatchAbortsOnCorruptStore(t *testing.T) {
	repo := &MockRevisionsRepo{}
	repo.On("ConflictingChartIDs", mock.Anything, []int64(nil)).
		Return(map[int64][]int64{3: {11, 12}}, nil)
	s := New(repo, "tester", zap.NewNop())

	err := s.SubmitBatch(context.Background(), []*models.SuggestedRevision{testRevision(7)})
	require.Error(t, err)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.False(t, conflictErr.PostInsert)
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, int64(3), conflictErr.Conflicts[0].ChartID)
	repo.AssertNotCalled(t, "InsertRevisions", mock.Anything, mock.Anything)
}

func TestSubmitBatchReportsPostInsertConflicts(t *testing.T) {
	repo := &MockRevisionsRepo{}
	repo.On("ConflictingChartIDs", mock.Anything, []int64(nil)).
		Return(map[int64][]int64{}, nil).Once()
	repo.On("InsertRevisions", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			for i, rev := range args.Get(1).([]*models.SuggestedRevision) {
				rev.ID = int64(100 + i)
			}
		}).
		Return(nil)
	// a concurrent writer slipped a second live revision in for chart 7
	repo.On("ConflictingChartIDs", mock.Anything, []int64{7, 8}).
		Return(map[int64][]int64{7: {42, 100}}, nil).Once()
	s := New(repo, "tester", zap.NewNop())

	err := s.SubmitBatch(context.Background(), []*models.SuggestedRevision{
		testRevision(7), testRevision(8),
	})
	require.Error(t, err)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.True(t, conflictErr.PostInsert, "rows stay persisted, conflict is reported for manual resolution")
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, int64(7), conflictErr.Conflicts[0].ChartID)
	assert.Equal(t, []int64{42, 100}, conflictErr.Conflicts[0].RevisionIDs)
	repo.AssertExpectations(t)
}

func TestSubmitBatchCleanPath(t *testing.T) {
	repo := &MockRevisionsRepo{}
	repo.On("ConflictingChartIDs", mock.Anything, []int64(nil)).
		Return(map[int64][]int64{}, nil).Once()
	repo.On("InsertRevisions", mock.Anything, mock.Anything).Return(nil)
	repo.On("ConflictingChartIDs", mock.Anything, []int64{7}).
		Return(map[int64][]int64{}, nil).Once()
	s := New(repo, "tester", zap.NewNop())

	err := s.SubmitBatch(context.Background(), []*models.SuggestedRevision{testRevision(7)})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSubmitBatchEmptyIsNoOp(t *testing.T) {
	repo := &MockRevisionsRepo{}
	s := New(repo, "tester", zap.NewNop())
	assert.NoError(t, s.SubmitBatch(context.Background(), nil))
	repo.AssertNotCalled(t, "ConflictingChartIDs", mock.Anything, mock.Anything)
}
