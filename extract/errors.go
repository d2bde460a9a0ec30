package extract

import "errors"

var (
	// ErrUnsupportedFormat is returned for file extensions the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrConversionFailed wraps a failed pdftotext run.
	ErrConversionFailed = errors.New("pdf conversion failed")
)
