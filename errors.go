package visionedge

import "errors"

var (
	// ErrInvalidInput is returned for malformed image dimensions, empty
	// tensors or a degenerate letterbox transform
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedOutputFormat is returned when the shape or role of the
	// model output tensors does not match a known decoding scheme.  It
	// indicates a model export mismatch and should not be retried
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")
	// ErrSourceUnavailable is returned when a video or image source has been
	// removed between the inference and render phases
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDecodeFailure is returned for numeric or shape mismatches inside a
	// single frame's decoding.  Video jobs skip the frame and continue
	ErrDecodeFailure = errors.New("decode failure")
	// ErrCancelled is returned when a long running loop observed its context
	// being cancelled
	ErrCancelled = errors.New("cancelled")
)
