package codecs

import "errors"

var (
	errEmptyPacket     = errors.New("codecs: empty packet payload")
	errFragmentGap     = errors.New("codecs: fragmentation-unit sequence gap or NAL-type mismatch")
	errFragmentNoStart = errors.New("codecs: fragmentation-unit sequence missing Start")
	errFragmentNoEnd   = errors.New("codecs: fragmentation-unit sequence missing End")
	errAggregateShort  = errors.New("codecs: aggregation packet truncated")
)
