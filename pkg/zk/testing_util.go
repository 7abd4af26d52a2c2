package zk

import (
	"encoding/json"
	"testing"

	szk "github.com/samuel/go-zookeeper/zk"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// PathTuple is a <path, object> combination used for generating nodes in zk. For testing purposes
// only.
type PathTuple struct {
	Path string
	Obj  interface{}
}

// CreateNodes creates nodes according to the argument PathTuples; a nil Obj creates an
// empty node. For testing purposes only.
func CreateNodes(t *testing.T, zkConn *szk.Conn, pathTuples []PathTuple) {
	for _, tuple := range pathTuples {
		var data []byte
		var err error

		if tuple.Obj != nil {
			data, err = json.Marshal(tuple.Obj)
			require.NoError(t, err)
		}

		log.Debugf("Creating test path %s", tuple.Path)
		_, err = zkConn.Create(tuple.Path, data, 0, szk.WorldACL(szk.PermAll))
		require.NoError(t, err)
	}
}
