package zk

import (
	szk "github.com/samuel/go-zookeeper/zk"
)

// Lock is held while a reassignment is being written. The samuel zk lock satisfies it.
type Lock interface {
	Unlock() error
}

var _ Lock = (*szk.Lock)(nil)

