package rtcppacket

import "errors"

var (
	errShort              = errors.New("rtcppacket: buffer shorter than header")
	errBadVersion         = errors.New("rtcppacket: unsupported version")
	errLengthMismatch     = errors.New("rtcppacket: encoded length does not match buffer")
	errUnknownPayloadType = errors.New("rtcppacket: unknown control-packet payload type")
	errNotLeadingReport   = errors.New("rtcppacket: compound packet must start with a sender or receiver report")
	errPaddingNotLast     = errors.New("rtcppacket: padding set on a non-last packet")
	errMixedVersions      = errors.New("rtcppacket: inconsistent version across compound packet")
	errTooManyReports     = errors.New("rtcppacket: more than 31 report blocks")
	errTooManySources     = errors.New("rtcppacket: more than 31 SDES chunks")
)
