package prusalink

import "errors"

var (
	ErrPrinterUnreachable   = errors.New("printer unreachable")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrMalformedResponse    = errors.New("malformed printer response")
)
