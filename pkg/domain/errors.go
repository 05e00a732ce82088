package domain

import "errors"

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrConstellationNotFound is returned when a constellation ID cannot be found in the store.
var ErrConstellationNotFound = errors.New("constellation not found")

// ErrNoConfirmationPending is returned when a confirm decision is issued while no node is awaiting one.
var ErrNoConfirmationPending = errors.New("no confirmation pending")

// ErrRunTerminal is returned when an operation targets a run that has already completed, failed or been cancelled.
var ErrRunTerminal = errors.New("run is terminal")

// ErrProbeNotFound is returned when an execution star names a probe that is not registered.
var ErrProbeNotFound = errors.New("probe not found")

// ErrInvalidConstellation is returned when a save or run is attempted on a graph with error-severity findings.
var ErrInvalidConstellation = errors.New("constellation has validation errors")
