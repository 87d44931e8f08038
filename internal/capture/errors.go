package capture

import "fmt"

// CaptureAbortError classifies an unexpected subprocess exit outside the
// grace period: no upload happens, cleanup continues.
type CaptureAbortError struct {
	Code int
}

func (e *CaptureAbortError) Error() string {
	return fmt.Sprintf("capture subprocess exited abnormally with code %d", e.Code)
}

// CaptureStartError classifies a spawn or initial sync-tone-request
// failure: fatal, no partial artifacts.
type CaptureStartError struct {
	Cause error
}

func (e *CaptureStartError) Error() string {
	return fmt.Sprintf("capture start failed: %v", e.Cause)
}

func (e *CaptureStartError) Unwrap() error { return e.Cause }
