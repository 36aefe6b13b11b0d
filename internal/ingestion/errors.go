package ingestion

import "errors"

var (
	ErrEmptyDocument       = errors.New("empty document")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)
