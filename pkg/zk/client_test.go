package zk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	szk "github.com/samuel/go-zookeeper/zk"
	"github.com/segmentio/topicspread/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPooledClientRequiresAddrs(t *testing.T) {
	_, err := NewPooledClient(PooledClientConfig{})
	assert.Error(t, err)
}

func TestPooledClientRead(t *testing.T) {
	if !util.CanTestZK() {
		t.Skip("Skipping because TOPICSPREAD_TEST_ZK is not set")
	}

	zkConn, _, err := szk.Connect([]string{util.TestZKAddr()}, 5*time.Second)
	require.NoError(t, err)
	defer zkConn.Close()

	prefix := testPrefix("pooled-client-read")
	tuples := []PathTuple{
		{Path: fmt.Sprintf("/%s", prefix)},
		{Path: fmt.Sprintf("/%s/parent", prefix)},
	}
	for i := 1; i <= 4; i++ {
		tuples = append(
			tuples,
			PathTuple{
				Path: fmt.Sprintf("/%s/parent/child%d", prefix, i),
				Obj:  map[string]int{"value": i},
			},
		)
	}
	CreateNodes(t, zkConn, tuples)

	client, err := NewPooledClient(
		PooledClientConfig{
			Addrs:          []string{util.TestZKAddr()},
			SessionTimeout: 5 * time.Second,
			PoolSize:       2,
			ReadOnly:       true,
		},
	)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	wg := sync.WaitGroup{}

	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			obj := map[string]int{}
			_, err := client.GetJSON(
				ctx,
				fmt.Sprintf("/%s/parent/child%d", prefix, index),
				&obj,
			)
			assert.NoError(t, err)
			assert.Equal(t, index, obj["value"])
		}(i)
	}
	wg.Wait()

	children, _, err := client.Children(ctx, fmt.Sprintf("/%s/parent", prefix))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"child1", "child2", "child3", "child4"}, children)

	exists, _, err := client.Exists(ctx, fmt.Sprintf("/%s/parent/child5", prefix))
	require.NoError(t, err)
	assert.False(t, exists)

	err = client.CreateJSON(ctx, fmt.Sprintf("/%s/parent/child5", prefix), "value")
	assert.Equal(t, ErrReadOnly, err)
}

func TestPooledClientWriteAndLock(t *testing.T) {
	if !util.CanTestZK() {
		t.Skip("Skipping because TOPICSPREAD_TEST_ZK is not set")
	}

	prefix := testPrefix("pooled-client-write")
	client, err := NewPooledClient(
		PooledClientConfig{
			Addrs:          []string{util.TestZKAddr()},
			SessionTimeout: 5 * time.Second,
			PoolSize:       1,
		},
	)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	path := fmt.Sprintf("/%s", prefix)

	require.NoError(t, client.CreateJSON(ctx, path, map[string]string{"key": "value"}))
	obj := map[string]string{}
	_, err = client.GetJSON(ctx, path, &obj)
	require.NoError(t, err)
	assert.Equal(t, "value", obj["key"])

	lock, err := client.AcquireLock(ctx, fmt.Sprintf("%s/lock", path))
	require.NoError(t, err)

	children, _, err := client.Children(ctx, fmt.Sprintf("%s/lock", path))
	require.NoError(t, err)
	assert.Equal(t, 1, len(children))
	require.NoError(t, lock.Unlock())
}

func TestPooledClientContextDone(t *testing.T) {
	if !util.CanTestZK() {
		t.Skip("Skipping because TOPICSPREAD_TEST_ZK is not set")
	}

	client, err := NewPooledClient(
		PooledClientConfig{
			Addrs:    []string{util.TestZKAddr()},
			PoolSize: 1,
		},
	)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = client.Get(ctx, "/")
	assert.Equal(t, context.Canceled, err)
}

func testPrefix(name string) string {
	return fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
}
