// Package pipeline computes ordering keys for deals within a pipeline stage.
//
// Freshly appended deals are spaced PositionStep apart, and a deal dropped
// between two neighbours takes the integer midpoint of their positions. There
// is no rebalancing pass: after roughly six or seven insertions into the same
// gap the midpoint collapses onto a neighbour's position and relative order
// between those two deals falls back to id order.
package pipeline

import (
	"github.com/dealdesk/dealdesk-backend/internal/domain"
)

// PositionStep is the gap left between appended deals
const PositionStep int64 = 100

// AppendPosition returns the position that sorts after every deal in
// stageDeals. stageDeals must not contain the deal being placed.
func AppendPosition(stageDeals []*domain.Deal) int64 {
	if len(stageDeals) == 0 {
		return 0
	}
	max := stageDeals[0].Position
	for _, d := range stageDeals[1:] {
		if d.Position > max {
			max = d.Position
		}
	}
	return max + PositionStep
}

// InsertPosition returns the position for a deal dropped on edge of the deal
// targetID. stageDeals must be ordered by position and must not contain the
// deal being placed.
func InsertPosition(stageDeals []*domain.Deal, targetID int32, edge domain.DropEdge) (int64, error) {
	if !edge.IsValid() {
		return 0, domain.ErrInvalidEdge
	}

	idx := -1
	for i, d := range stageDeals {
		if d.ID == targetID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, domain.ErrTargetDealNotFound
	}

	target := stageDeals[idx].Position
	if edge == domain.EdgeBefore {
		if idx == 0 {
			return target - PositionStep, nil
		}
		return midpoint(stageDeals[idx-1].Position, target), nil
	}

	if idx == len(stageDeals)-1 {
		return target + PositionStep, nil
	}
	return midpoint(target, stageDeals[idx+1].Position), nil
}

// midpoint rounds toward lo so the result never reaches hi
func midpoint(lo, hi int64) int64 {
	return lo + (hi-lo)/2
}
