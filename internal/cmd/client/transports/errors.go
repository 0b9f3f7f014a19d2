package transports

import "errors"

// ErrStop may be returned by an onEvent callback to end a subscription
// without error.
var ErrStop = errors.New("transports: stop")
