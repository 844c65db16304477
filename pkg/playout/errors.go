package playout

import "errors"

var errEmptyPacket = errors.New("playout: packet has no payload")
