package websocket

import "errors"

var (
	ErrClientQueueFull = errors.New("client message queue is full")
	ErrClientClosed    = errors.New("client connection is closed")
	ErrBrokerClosed    = errors.New("broker is closed")
	ErrInvalidMessage  = errors.New("invalid message format")
	ErrUnknownEvent    = errors.New("unknown event kind")
)
