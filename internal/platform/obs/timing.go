package obs

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// Time logs how long an operation took. Use as:
//
//	defer obs.Time(ctx, "trips.Save")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)
		logger := FromContext(ctx)

		if errp != nil && *errp != nil {
			logger.Warn("op",
				slog.String("req_id", reqID),
				slog.String("op", name),
				slog.Int64("dur_ms", dur.Milliseconds()),
				slog.String("err", (*errp).Error()),
			)
			return
		}
		logger.Debug("op",
			slog.String("req_id", reqID),
			slog.String("op", name),
			slog.Int64("dur_ms", dur.Milliseconds()),
		)
	}
}
