package configurator

import (
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
)

var (
	// ErrSessionDisposed is returned by every operation on an ended session
	// and by transitions that were in flight when it ended.
	ErrSessionDisposed = pkgerrors.New(pkgerrors.CodeGone, "configuration session ended")

	// ErrBusy means a transition or save is still running; neither another
	// transition nor a selection edit may start until it completes.
	ErrBusy = pkgerrors.New(pkgerrors.CodeStateConflict, "another step transition is in progress")
)
