package simulator

import (
	"context"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/measurement"
	"codeberg.org/mutker/envsim/internal/store"
)

// Enforce evicts the oldest local day when the store holds more than
// targetDays*samplesPerDay readings. At most one day is removed per call.
func Enforce(ctx context.Context, q store.Querier, loc *time.Location, targetDays, samplesPerDay int) (int64, error) {
	if targetDays <= 0 || samplesPerDay <= 0 {
		return 0, errors.New().WithData(errors.ErrInvalidArgument, struct {
			TargetDays    int
			SamplesPerDay int
		}{targetDays, samplesPerDay})
	}

	capacity := int64(targetDays) * int64(samplesPerDay)

	count, err := q.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count <= capacity {
		return 0, nil
	}

	oldest, ok, err := q.Earliest(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	start, end := measurement.DateOf(oldest.Timestamp, loc).Range(loc)

	return q.DeleteInRange(ctx, start, end)
}
