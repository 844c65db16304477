package buffer

import "errors"

var (
	errPacketNotFound = errors.New("buffer: packet not found in retransmit cache")
	errBufferTooSmall = errors.New("buffer: destination slice smaller than the cached packet")
)
