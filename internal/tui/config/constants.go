package config

import "time"

// Layout constants
const (
	// Panel layout
	LeftPanelWidthRatio = 0.5
	MinPanelWidth       = 30
	ReservedRows        = 6 // header + footer + borders

	// Preview area in text mode
	DefaultPreviewCols = 40
	DefaultPreviewRows = 16

	// Dialog dimensions
	DialogDefaultWidth    = 60
	DialogLargeWidth      = 70
	FilePickerDialogWidth = 80
	FilePickerHeight      = 14

	// Progress bar
	ProgressBarWidth = 30
)

// Timing constants
const (
	// Status messages other than errors disappear after this long
	StatusMessageTTL = 4 * time.Second

	// Analyze progress creeps towards this value until the call settles
	ProgressCeiling = 0.95
	ProgressStep    = 0.08
)
