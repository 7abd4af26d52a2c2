package zk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	szk "github.com/samuel/go-zookeeper/zk"
	log "github.com/sirupsen/logrus"
)

// ErrReadOnly is returned by write operations on a read-only client.
var ErrReadOnly = errors.New("Cannot write to zookeeper in read-only mode")

// Client exposes the zookeeper operations needed for inspecting topics and starting
// reassignments. Unlike the underlying samuel zk client, it allows passing a context
// into each call.
type Client interface {
	Get(ctx context.Context, path string) ([]byte, *szk.Stat, error)
	GetJSON(ctx context.Context, path string, obj interface{}) (*szk.Stat, error)
	Children(ctx context.Context, path string) ([]string, *szk.Stat, error)
	Exists(ctx context.Context, path string) (bool, *szk.Stat, error)

	CreateJSON(ctx context.Context, path string, obj interface{}) error
	AcquireLock(ctx context.Context, path string) (Lock, error)

	Close() error
}

var _ Client = (*PooledClient)(nil)

type readOp int

const (
	opGet readOp = iota
	opChildren
	opExists
)

type readRequest struct {
	op       readOp
	path     string
	respChan chan readResponse
}

type readResponse struct {
	content  []byte
	exists   bool
	children []string
	stat     *szk.Stat
	err      error
}

// PooledClientConfig holds the parameters for NewPooledClient.
type PooledClientConfig struct {
	Addrs          []string
	SessionTimeout time.Duration
	PoolSize       int
	ReadOnly       bool

	// Logger receives the samuel client's internal messages; defaults to DebugLogger.
	Logger szk.Logger
}

// PooledClient is a Client that spreads reads over a pool of connections. Reading the
// state of every partition in a large topic is much faster this way than over a single
// connection. Writes and locks always go through the first connection.
type PooledClient struct {
	connections []*szk.Conn
	requests    chan readRequest
	readOnly    bool
}

// NewPooledClient connects to zookeeper and returns a PooledClient.
func NewPooledClient(config PooledClientConfig) (*PooledClient, error) {
	if len(config.Addrs) == 0 {
		return nil, errors.New("At least one zookeeper address is required")
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	sessionTimeout := config.SessionTimeout
	if sessionTimeout == 0 {
		sessionTimeout = time.Minute
	}
	var logger szk.Logger = &DebugLogger{}
	if config.Logger != nil {
		logger = config.Logger
	}

	log.Debugf("Creating zk client with addresses %+v", config.Addrs)
	client := &PooledClient{
		requests: make(chan readRequest),
		readOnly: config.ReadOnly,
	}

	for i := 0; i < poolSize; i++ {
		conn, _, err := szk.Connect(
			config.Addrs,
			sessionTimeout,
			szk.WithLogger(logger),
		)
		if err != nil {
			client.closeConnections()
			return nil, fmt.Errorf(
				"Error connecting to zookeeper at %+v: %w",
				config.Addrs,
				err,
			)
		}
		client.connections = append(client.connections, conn)
	}

	for i, conn := range client.connections {
		go client.serve(i, conn)
	}

	return client, nil
}

func (c *PooledClient) serve(index int, conn *szk.Conn) {
	log.Debugf("Starting zk connection %d", index)

	for request := range c.requests {
		resp := readResponse{}

		switch request.op {
		case opGet:
			resp.content, resp.stat, resp.err = conn.Get(request.path)
		case opChildren:
			resp.children, resp.stat, resp.err = conn.Children(request.path)
		case opExists:
			resp.exists, resp.stat, resp.err = conn.Exists(request.path)
		default:
			resp.err = fmt.Errorf("Unrecognized zk operation: %d", request.op)
		}

		request.respChan <- resp
	}
}

func (c *PooledClient) read(
	ctx context.Context,
	op readOp,
	path string,
) (readResponse, error) {
	// Buffered so that a worker never blocks on a caller that gave up
	respChan := make(chan readResponse, 1)

	select {
	case c.requests <- readRequest{op: op, path: path, respChan: respChan}:
	case <-ctx.Done():
		return readResponse{}, ctx.Err()
	}

	select {
	case resp := <-respChan:
		return resp, resp.err
	case <-ctx.Done():
		return readResponse{}, ctx.Err()
	}
}

// Get returns the contents of the node at the argument path.
func (c *PooledClient) Get(
	ctx context.Context,
	path string,
) ([]byte, *szk.Stat, error) {
	log.Debugf("Getting zk path %s", path)
	resp, err := c.read(ctx, opGet, path)
	return resp.content, resp.stat, err
}

// GetJSON unmarshals the JSON contents of the node at the argument path into obj.
func (c *PooledClient) GetJSON(
	ctx context.Context,
	path string,
	obj interface{},
) (*szk.Stat, error) {
	data, stat, err := c.Get(ctx, path)
	if err != nil {
		return stat, err
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return stat, fmt.Errorf("Error decoding contents of %s: %w", path, err)
	}
	return stat, nil
}

// Children returns the names of the children of the node at the argument path.
func (c *PooledClient) Children(
	ctx context.Context,
	path string,
) ([]string, *szk.Stat, error) {
	log.Debugf("Getting zk children at %s", path)
	resp, err := c.read(ctx, opChildren, path)
	return resp.children, resp.stat, err
}

// Exists returns whether a node exists at the argument path.
func (c *PooledClient) Exists(
	ctx context.Context,
	path string,
) (bool, *szk.Stat, error) {
	resp, err := c.read(ctx, opExists, path)
	return resp.exists, resp.stat, err
}

// CreateJSON creates a persistent node at the argument path holding the JSON encoding
// of obj.
func (c *PooledClient) CreateJSON(
	ctx context.Context,
	path string,
	obj interface{},
) error {
	if c.readOnly {
		return ErrReadOnly
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		_, err := c.connections[0].Create(path, data, 0, szk.WorldACL(szk.PermAll))
		errChan <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// AcquireLock blocks until the lock at the argument path is held or the context is done.
// The caller is responsible for calling Unlock.
func (c *PooledClient) AcquireLock(ctx context.Context, path string) (Lock, error) {
	if c.readOnly {
		return nil, ErrReadOnly
	}

	lock := szk.NewLock(c.connections[0], path, szk.WorldACL(szk.PermAll))
	errChan := make(chan error, 1)

	go func() {
		errChan <- lock.Lock()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errChan:
		if err != nil {
			return nil, err
		}
		return lock, nil
	}
}

// Close stops the pool workers and closes every connection.
func (c *PooledClient) Close() error {
	close(c.requests)
	c.closeConnections()
	return nil
}

func (c *PooledClient) closeConnections() {
	for index, conn := range c.connections {
		log.Debugf("Closing zk connection %d/%d", index+1, len(c.connections))
		conn.Close()
	}
}
