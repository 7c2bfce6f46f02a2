package backend

import "errors"

var (
	// ErrNoFreeCrtc means every CRTC compatible with the connector's
	// encoders is already assigned to another output.
	ErrNoFreeCrtc = errors.New("no free CRTC for connector")

	// ErrNoCurrentMode means a "current" mode request found no
	// previously configured pipeline to match against.
	ErrNoCurrentMode = errors.New("output has no currently configured mode")

	// ErrBadModeRequest means the mode request string did not parse.
	ErrBadModeRequest = errors.New("invalid mode request")

	// ErrModeNotFound means no hardware mode matched the request.
	ErrModeNotFound = errors.New("no matching mode")

	// ErrFlipPending means a frame was submitted while the previous
	// flip had not completed yet.
	ErrFlipPending = errors.New("page flip already pending")

	// ErrFlipTimeout means teardown gave up waiting for a pending
	// flip completion and force-released the output.
	ErrFlipTimeout = errors.New("timed out waiting for page flip completion")

	// ErrNotConnected means the operation needs an actively driven
	// output.
	ErrNotConnected = errors.New("output is not connected")
)
