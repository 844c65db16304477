package session

import "errors"

var errBadVersion = errors.New("session: unsupported RTP version")
