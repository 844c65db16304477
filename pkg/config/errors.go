package config

import "errors"

var (
	errUnknownProfile   = errors.New("config: unrecognized profile")
	errMissingClockRate = errors.New("config: clock_rate is required")
	errNoPayloadTypes   = errors.New("config: payload_types must name at least one payload type")
)
