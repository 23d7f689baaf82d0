package metrics

import "time"

// VolumeMetrics records mediation outcomes at the filesystem call boundary.
type VolumeMetrics interface {
	// ObserveOperation records one mediated call with its decision outcome
	// ("allow", "allow-redacted", "deny") and duration.
	ObserveOperation(op, decision string, duration time.Duration)

	// RecordRedaction counts one redacted read.
	RecordRedaction()

	// RecordIndexLookup counts one consultation of the content index with
	// its result ("hit", "miss", "unavailable").
	RecordIndexLookup(result string)
}

// noopVolumeMetrics implements VolumeMetrics with no behavior.
type noopVolumeMetrics struct{}

// NewNoopVolumeMetrics returns a VolumeMetrics that records nothing.
func NewNoopVolumeMetrics() VolumeMetrics {
	return noopVolumeMetrics{}
}

func (noopVolumeMetrics) ObserveOperation(op, decision string, duration time.Duration) {}
func (noopVolumeMetrics) RecordRedaction()                                             {}
func (noopVolumeMetrics) RecordIndexLookup(result string)                              {}
