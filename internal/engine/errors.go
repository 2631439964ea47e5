package engine

import "errors"

// ErrShuttingDown is returned by the facade once Close has begun: new writes
// are declined while the workers drain.
var ErrShuttingDown = errors.New("engine shutting down")
