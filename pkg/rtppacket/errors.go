package rtppacket

import "errors"

var (
	errShortHeader     = errors.New("rtppacket: buffer shorter than header")
	errBadVersion      = errors.New("rtppacket: unsupported version")
	errBadPadding      = errors.New("rtppacket: inconsistent padding")
	errTooManyCSRC     = errors.New("rtppacket: more than 15 contributing sources")
	errBadExtensionID  = errors.New("rtppacket: invalid header-extension element")
	errUnsupportedNTP56 = errors.New("rtppacket: ntp-56 header extension is not supported")
)
