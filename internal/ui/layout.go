package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which the header drops
	// secondary fields.
	LayoutCompactWidth = 100

	// LayoutSplitWidth is the minimum width to show the router tree and the
	// cache side by side.
	LayoutSplitWidth = 120
)

// Log display limits.
const (
	// LogTailLines is the number of log lines read per refresh.
	LogTailLines = 2000
)

// Timing constants.
const (
	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = time.Second

	// ActionTimeout bounds a single router action started from a key.
	ActionTimeout = 15 * time.Second
)
