package ports

import "errors"

// ErrNoVideo is returned by a VideoFetcher whose download call succeeded but
// left no video file behind.
var ErrNoVideo = errors.New("no video file produced by downloader")

// ExitError carries the diagnostics of a failed external process.
type ExitError struct {
	Tool     string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	if e.Output != "" {
		return e.Tool + ": " + e.Err.Error() + ": " + e.Output
	}
	return e.Tool + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
