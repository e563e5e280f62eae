package receipt

import "errors"

var (
	// ErrNotFound is returned when no receipt has the requested ID
	ErrNotFound = errors.New("receipt not found")

	// ErrUnsupportedFileType is returned for uploads with an unknown extension
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFileTooLarge is returned for uploads over the size limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedExportFormat is returned for unknown export formats
	ErrUnsupportedExportFormat = errors.New("unsupported export format")

	// ErrInvalidExportRange is returned for unparseable or inverted export dates
	ErrInvalidExportRange = errors.New("invalid export range")
)
