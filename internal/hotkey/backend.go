// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hotkey

import "errors"

// Backend is the platform side of a hotkey: it claims combinations and
// reports activations by binding id.
type Backend interface {
	// Register claims c for id. It returns ErrRegistrationConflict (possibly
	// wrapped) when something else already owns c.
	Register(id int, c Combo) error
	// Unregister releases whatever id holds. Unknown ids are not an error.
	Unregister(id int) error
	// Activations delivers the id of each pressed binding. It is closed by Close.
	Activations() <-chan int
	Close() error
}

var (
	// ErrRegistrationConflict means another application owns the combination.
	ErrRegistrationConflict = errors.New("key combination is already registered by another application")
	// ErrBackendClosed is returned by a backend used after Close.
	ErrBackendClosed = errors.New("hotkey backend closed")
	// ErrNoListener is returned by Trigger when no launcher owns the combination.
	ErrNoListener = errors.New("no running summon instance owns this key combination")
)

// RegistrationError reports a failed Register.
type RegistrationError struct {
	Combo Combo
	Err   error
}

func (e *RegistrationError) Error() string {
	return "register hotkey " + e.Combo.String() + ": " + e.Err.Error()
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a registration conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRegistrationConflict)
}
