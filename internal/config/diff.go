package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// storage changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AlignChanged is true when any align tuning field changed.
	AlignChanged bool

	// SegmentChanged is true when any segment tuning field changed.
	SegmentChanged bool

	// PollIntervalChanged is true when the worker poll interval changed.
	PollIntervalChanged bool
}

// Any reports whether the diff contains any change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.AlignChanged || d.SegmentChanged || d.PollIntervalChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Align != new.Align {
		d.AlignChanged = true
	}

	if !segmentEqual(old.Segment, new.Segment) {
		d.SegmentChanged = true
	}

	if old.Server.PollIntervalSeconds != new.Server.PollIntervalSeconds {
		d.PollIntervalChanged = true
	}

	return d
}

// segmentEqual compares two segment configs field by field. SegmentConfig is
// not comparable because of the filler word slice.
func segmentEqual(a, b SegmentConfig) bool {
	if a.MaxWords != b.MaxWords || a.MinWords != b.MinWords {
		return false
	}
	if a.MaxSeconds != b.MaxSeconds || a.MinSeconds != b.MinSeconds {
		return false
	}
	if a.MaxCharacters != b.MaxCharacters || a.MinCharacters != b.MinCharacters {
		return false
	}
	if a.SplitStrategy != b.SplitStrategy || a.MergeStrategy != b.MergeStrategy {
		return false
	}
	if a.MaxGapSeconds != b.MaxGapSeconds || a.MinWordConfidence != b.MinWordConfidence {
		return false
	}
	if len(a.FillerWords) != len(b.FillerWords) {
		return false
	}
	for i := range a.FillerWords {
		if a.FillerWords[i] != b.FillerWords[i] {
			return false
		}
	}
	return true
}
