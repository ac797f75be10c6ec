package reporter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"judgegate/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultWriteTimeout = 3 * time.Second

// Sink persists or forwards one execution log.
type Sink interface {
	Write(ctx context.Context, log ExecutionLog) error
}

// Reporter fans each log out to every sink.
type Reporter struct {
	sinks   []Sink
	timeout time.Duration
}

func New(timeout time.Duration, sinks ...Sink) *Reporter {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Reporter{sinks: kept, timeout: timeout}
}

// Sinks returns how many sinks are attached.
func (r *Reporter) Sinks() int {
	return len(r.sinks)
}

// Record writes log to every sink. Writes outlive request cancellation but not the timeout.
// Failures and panics are logged and swallowed.
func (r *Reporter) Record(ctx context.Context, log ExecutionLog) {
	if r == nil || len(r.sinks) == 0 {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	for _, sink := range r.sinks {
		r.write(writeCtx, sink, log)
	}
}

func (r *Reporter) write(ctx context.Context, sink Sink, log ExecutionLog) {
	name := fmt.Sprintf("%T", sink)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(ctx, "execution log sink panicked", zap.String("sink", name), zap.Any("panic", rec))
		}
	}()
	if err := sink.Write(ctx, log); err != nil {
		logger.Warn(ctx, "execution log write failed",
			zap.String("sink", name),
			zap.String("log_id", log.ID),
			zap.Error(err),
		)
	}
}

func secondsToMs(s string) int64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return int64(v*1000 + 0.5)
}
