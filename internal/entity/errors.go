package entity

import "errors"

var (
	// Person errors
	ErrPersonNotFound = errors.New("person not found")
	ErrInvalidPerson  = errors.New("person must have id and name")

	// Scan errors
	ErrInvalidDateRange = errors.New("end date is before start date")
	ErrRangeTooLong     = errors.New("date range is too long")

	// Notification errors
	ErrSettingsNotFound     = errors.New("settings not found")
	ErrNoRecipient          = errors.New("no notification recipient configured")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNoDeviceToken        = errors.New("recipient has no device token")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Broadcast errors
	ErrBroadcastNotFound = errors.New("broadcast not found")
	ErrInvalidBroadcast  = errors.New("broadcast needs a title and a scheduled time")
	ErrAllSendsFailed    = errors.New("all message sends failed")
	ErrQueueUnavailable  = errors.New("broadcast queue is not configured")

	// General errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabaseError = errors.New("database error")
)
