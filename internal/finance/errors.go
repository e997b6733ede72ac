package finance

import "errors"

var (
	// ErrInvalidSeries reports malformed input: unordered or duplicate
	// timestamps, bad prices, bad parameters.
	ErrInvalidSeries = errors.New("invalid series")
	// ErrMissingAsset reports a requested symbol with no series.
	ErrMissingAsset = errors.New("missing asset")
	// ErrNoContributors reports a mean over zero non-null values.
	ErrNoContributors = errors.New("no contributing returns")
)
