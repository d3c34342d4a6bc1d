package pipeline

import (
	"testing"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deals(positions ...int64) []*domain.Deal {
	result := make([]*domain.Deal, len(positions))
	for i, p := range positions {
		result[i] = &domain.Deal{ID: int32(i + 1), Position: p}
	}
	return result
}

func TestAppendPosition_EmptyStage(t *testing.T) {
	assert.Equal(t, int64(0), AppendPosition(nil))
}

func TestAppendPosition_StrictlyIncreasingByStep(t *testing.T) {
	var stage []*domain.Deal
	for i := 0; i < 10; i++ {
		pos := AppendPosition(stage)
		assert.Equal(t, int64(i)*PositionStep, pos)
		stage = append(stage, &domain.Deal{ID: int32(i + 1), Position: pos})
	}
}

func TestAppendPosition_UsesMaxNotLast(t *testing.T) {
	stage := []*domain.Deal{
		{ID: 1, Position: 500},
		{ID: 2, Position: 100},
	}
	assert.Equal(t, int64(600), AppendPosition(stage))
}

func TestAppendPosition_NegativePositions(t *testing.T) {
	assert.Equal(t, int64(-100), AppendPosition(deals(-300, -200)))
}

func TestInsertPosition_AfterLast(t *testing.T) {
	// D1 at 0 is being moved; only D2 at 100 remains in the stage
	stage := []*domain.Deal{{ID: 2, Position: 100}}

	pos, err := InsertPosition(stage, 2, domain.EdgeAfter)

	require.NoError(t, err)
	assert.Equal(t, int64(200), pos)
}

func TestInsertPosition_BeforeFirst(t *testing.T) {
	stage := deals(0, 100, 200)

	pos, err := InsertPosition(stage, 1, domain.EdgeBefore)

	require.NoError(t, err)
	assert.Equal(t, int64(-100), pos)
	assert.Less(t, pos, stage[0].Position)
}

func TestInsertPosition_BetweenNeighbours(t *testing.T) {
	stage := deals(0, 100, 200)

	tests := []struct {
		name     string
		targetID int32
		edge     domain.DropEdge
		lo, hi   int64
		want     int64
	}{
		{name: "after first", targetID: 1, edge: domain.EdgeAfter, lo: 0, hi: 100, want: 50},
		{name: "before second", targetID: 2, edge: domain.EdgeBefore, lo: 0, hi: 100, want: 50},
		{name: "after second", targetID: 2, edge: domain.EdgeAfter, lo: 100, hi: 200, want: 150},
		{name: "before third", targetID: 3, edge: domain.EdgeBefore, lo: 100, hi: 200, want: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := InsertPosition(stage, tt.targetID, tt.edge)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pos)
			assert.Greater(t, pos, tt.lo)
			assert.Less(t, pos, tt.hi)
		})
	}
}

func TestInsertPosition_RepeatedInsertionsStayBetween(t *testing.T) {
	lo := &domain.Deal{ID: 1, Position: 0}
	hi := &domain.Deal{ID: 2, Position: 100}

	// Each insertion lands right after lo, halving the gap. Six fit before
	// the gap is exhausted.
	for i := 0; i < 6; i++ {
		stage := []*domain.Deal{lo, hi}
		pos, err := InsertPosition(stage, lo.ID, domain.EdgeAfter)
		require.NoError(t, err)
		assert.Greater(t, pos, lo.Position)
		assert.Less(t, pos, hi.Position)
		hi = &domain.Deal{ID: int32(i + 3), Position: pos}
	}
	assert.Equal(t, int64(1), hi.Position)
}

func TestInsertPosition_AfterLastExceedsMax(t *testing.T) {
	stage := deals(-50, 10, 70)

	pos, err := InsertPosition(stage, 3, domain.EdgeAfter)

	require.NoError(t, err)
	assert.Greater(t, pos, int64(70))
}

func TestInsertPosition_TargetNotInStage(t *testing.T) {
	_, err := InsertPosition(deals(0, 100), 99, domain.EdgeAfter)
	assert.ErrorIs(t, err, domain.ErrTargetDealNotFound)
}

func TestInsertPosition_InvalidEdge(t *testing.T) {
	_, err := InsertPosition(deals(0), 1, domain.DropEdge("middle"))
	assert.ErrorIs(t, err, domain.ErrInvalidEdge)
}
