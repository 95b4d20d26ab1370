package aisverify

import "errors"

// Error kinds.  Every failure is wrapped with one of these so callers can
// classify it with errors.Is and keep going with the next message.
var (
	ErrParse        = errors.New("sentence parse error")
	ErrFragment     = errors.New("fragment error")
	ErrDecode       = errors.New("payload decode error")
	ErrVerification = errors.New("verification error")
	ErrTransport    = errors.New("transport error")
	ErrConfig       = errors.New("configuration error")
)
