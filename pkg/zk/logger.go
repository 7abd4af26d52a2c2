package zk

import (
	szk "github.com/samuel/go-zookeeper/zk"
	log "github.com/sirupsen/logrus"
)

// DebugLogger forwards the messages of the zookeeper connections to logrus.
type DebugLogger struct{}

var _ szk.Logger = (*DebugLogger)(nil)

// Printf logs at the debug level so that session events don't clutter command output.
func (l *DebugLogger) Printf(format string, args ...interface{}) {
	log.Debugf("zk: "+format, args...)
}
