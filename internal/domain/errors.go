package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidLevel  = errors.New("invalid price level")
	ErrNoMarketData  = errors.New("no market data")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrMaxReconnects = errors.New("max reconnect attempts reached")
	ErrLockHeld      = errors.New("lock already held")
)
