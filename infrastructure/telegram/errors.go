package telegram

import "errors"

var (
	// ErrMissingToken is returned when no bot token is configured
	ErrMissingToken = errors.New("telegram bot token is required")

	// ErrNoFilePath is returned when getFile answers without a download path
	ErrNoFilePath = errors.New("telegram returned no file path")

	// ErrUnexpectedStatus is returned when the file endpoint answers with a non-200 status
	ErrUnexpectedStatus = errors.New("unexpected download status")
)
