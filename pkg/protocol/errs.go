package protocol

import "errors"

var (
	// ErrUnknownFormat indicates that the initialization flags carried
	// bits outside the known format set.
	ErrUnknownFormat = errors.New("protocol: unknown format flags")

	// ErrBinaryUnsupported indicates that the binary framing flag was
	// requested; this engine only speaks the JSON rendition.
	ErrBinaryUnsupported = errors.New("protocol: binary format not supported")
)
