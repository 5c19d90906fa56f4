package obs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rider-tracking-service/internal/platform/metrics"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// WithRequestID stores a request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request id stored on ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time starts timing op name. Call the returned func with a pointer to the
// operation's named error result, usually via defer.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()
	log := zerolog.Ctx(ctx)
	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			metrics.OpDuration.WithLabelValues(name, "error").Observe(dur.Seconds())
			log.Debug().Str("req_id", reqID).Str("op", name).Dur("dur", dur).Err(*errp).Msg("op failed")
			return
		}
		metrics.OpDuration.WithLabelValues(name, "ok").Observe(dur.Seconds())
		log.Debug().Str("req_id", reqID).Str("op", name).Dur("dur", dur).Msg("op done")
	}
}
