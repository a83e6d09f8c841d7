package platform

import "errors"

var (
	// ErrNotEnoughHosts indicates that an allocation asked for more hosts
	// than are currently free.
	ErrNotEnoughHosts = errors.New("platform: not enough free hosts")
)
