// CLAUDE:SUMMARY Sentinel errors for the pipeline: nil generator, undecodable image.
package ocrpipe

import "errors"

// ErrNilGenerator is returned when a Pipeline is built without a generation
// capability.
var ErrNilGenerator = errors.New("ocrpipe: generator is required")

// ErrInvalidImage is returned when request image data cannot be decoded.
var ErrInvalidImage = errors.New("ocrpipe: image data is not decodable")
