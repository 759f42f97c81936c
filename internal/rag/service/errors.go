package service

import "errors"

// ErrShuttingDown is returned by Service methods invoked after Close has
// begun, so a TaskRunner can distinguish "stop accepting work" from a
// genuine pipeline failure and skip marking the document as error.
var ErrShuttingDown = errors.New("rag service: shutting down")
