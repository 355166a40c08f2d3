package bus

import "errors"

var (
	ErrConnectTimeout = errors.New("bus: connect timed out")
	ErrUndeclared     = errors.New("bus: declaration undeclared")
	ErrAlreadyReplied = errors.New("bus: query already replied")
	ErrNoReplyTopic   = errors.New("bus: query has no reply topic")
	ErrInvalidKeyExpr = errors.New("bus: invalid key expression")
	ErrClosed         = errors.New("bus: session closed")
)
