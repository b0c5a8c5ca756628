package domain

import "errors"

// ErrNotebookNotFound is returned when a notebook name cannot be found in the store.
var ErrNotebookNotFound = errors.New("notebook not found")

// ErrCellNotFound is returned when a cell identity no longer exists in a document.
var ErrCellNotFound = errors.New("cell not found")

// ErrCellIndexOutOfRange is returned when a cell index does not address a cell.
var ErrCellIndexOutOfRange = errors.New("cell index out of range")

// ErrUnknownCellKind is returned when a persisted cell carries a kind other than 1 or 2.
var ErrUnknownCellKind = errors.New("unknown cell kind")

// ErrMalformedNotebook is returned when notebook bytes are not a valid notebook document.
var ErrMalformedNotebook = errors.New("malformed notebook")

// ErrHandlerUnavailable is returned when no execution handler can serve a request.
var ErrHandlerUnavailable = errors.New("execution handler unavailable")

// ErrUnknownResponse is returned when an execution response variant is not handled.
var ErrUnknownResponse = errors.New("unknown execution response")

// ErrLockLost is returned when a distributed lock expired or was taken over while held.
var ErrLockLost = errors.New("distributed lock lost")

// ErrNotCodeCell is returned when a Markup cell is targeted for execution.
var ErrNotCodeCell = errors.New("cell is not a code cell")
