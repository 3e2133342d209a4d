package store

import (
	"context"

	"BandSentinel/internal/model"
)

// NoopRecorder discards signals. Used when signal history is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSignals(_ context.Context, _ string, _ []model.Signal) error {
	return nil
}
func (n *NoopRecorder) Close() error { return nil }
