package engine

import "errors"

var (
	// ErrUnavailable means every engine source was exhausted; it is sticky for the session.
	ErrUnavailable = errors.New("chat engine unavailable")
	// ErrCapability means the runtime lacks the accelerator inference needs.
	ErrCapability = errors.New("required inference capability missing")
	// ErrNotFound marks a missing library, model manifest or artifact.
	ErrNotFound = errors.New("resource not found")
	// ErrPlaceholder marks a weight file that is a large-file pointer instead of real weights.
	ErrPlaceholder = errors.New("weight shard is a placeholder pointer")
	// ErrRemoteDisabled is returned for remote candidates when remote access is not permitted.
	ErrRemoteDisabled = errors.New("remote access not permitted")
)
