package storage

import "errors"

var (
	// ErrPlanNotFound is returned when a plan id has no catalog entry
	ErrPlanNotFound = errors.New("plan not found")

	// ErrSubscriberNotFound is returned when a subscriber is not found
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrDuplicateEmail is returned when registering an email that already exists
	ErrDuplicateEmail = errors.New("email already registered")
)
