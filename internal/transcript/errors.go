package transcript

import "errors"

var (
	ErrMalformedDocument = errors.New("document does not match transcript schema")
	ErrInvalidItem       = errors.New("invalid transcript item")
)
