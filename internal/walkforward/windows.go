package walkforward

import (
	"fmt"
	"time"
)

// Window is one train/validate pair in a walk-forward run. The validate
// period strictly follows the train period:
// TrainStart < TrainEnd < ValidateStart < ValidateEnd.
type Window struct {
	Number        int       `json:"window_number"`
	TrainStart    time.Time `json:"train_start"`
	TrainEnd      time.Time `json:"train_end"`
	ValidateStart time.Time `json:"validate_start"`
	ValidateEnd   time.Time `json:"validate_end"`
}

// GenerateWindows produces non-overlapping, chronologically increasing
// train/validate windows over [start, end], advancing by the validate period
// length each iteration. Fewer than one complete window is valid and yields
// an empty slice. Non-positive period lengths are a configuration error.
func GenerateWindows(start, end time.Time, trainMonths, validateMonths int) ([]Window, error) {
	if trainMonths <= 0 {
		return nil, fmt.Errorf("train period must be positive, got %d months", trainMonths)
	}
	if validateMonths <= 0 {
		return nil, fmt.Errorf("validate period must be positive, got %d months", validateMonths)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	var windows []Window
	trainStart := start
	for n := 1; ; n++ {
		trainEnd := trainStart.AddDate(0, trainMonths, 0)
		validateStart := trainEnd.AddDate(0, 0, 1)
		validateEnd := validateStart.AddDate(0, validateMonths, 0)

		if validateEnd.After(end) {
			break
		}

		windows = append(windows, Window{
			Number:        n,
			TrainStart:    trainStart,
			TrainEnd:      trainEnd,
			ValidateStart: validateStart,
			ValidateEnd:   validateEnd,
		})

		trainStart = trainStart.AddDate(0, validateMonths, 0)
	}

	return windows, nil
}
