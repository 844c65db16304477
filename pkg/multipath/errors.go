package multipath

import "errors"

var errNotASubflowReport = errors.New("multipath: wrapper is not a subflow-specific report")
