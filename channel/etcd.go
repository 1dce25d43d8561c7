package channel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const defaultEtcdDialTimeout = 5 * time.Second

type etcdConfig struct {
	dialTimeout time.Duration
}

// EtcdOption configures NewEtcd.
type EtcdOption func(*etcdConfig)

// WithEtcdDialTimeout bounds the initial connection to the etcd cluster.
func WithEtcdDialTimeout(d time.Duration) EtcdOption {
	return func(c *etcdConfig) {
		c.dialTimeout = d
	}
}

// Etcd is a mailbox channel over etcd v3, for two processes that can both reach a
// cluster but not each other.
//
//	Key:   {prefix}/{id}/{side}/{seq}-{writer}
//	Value: one frame
//
// Post writes into the peer's inbox. Listen replays whatever is already in the local
// inbox, then watches it from the next revision, deleting each key once delivered.
type Etcd struct {
	client     *clientv3.Client
	ownsClient bool
	prefix     string
	id         string
	side       Side
	writer     string
	seq        atomix.Uint32

	ctx    context.Context
	cancel context.CancelFunc
	listen sync.Once
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// NewEtcd connects to the given endpoints and returns the side end of the mailbox
// channel named id under prefix.
func NewEtcd(endpoints []string, prefix, id string, side Side, opts ...EtcdOption) (*Etcd, error) {
	cfg := etcdConfig{dialTimeout: defaultEtcdDialTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: cfg.dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("channel: connect etcd: %w", err)
	}
	e := NewEtcdFromClient(c, prefix, id, side)
	e.ownsClient = true
	return e, nil
}

// NewEtcdFromClient builds a mailbox channel on an existing client. Close leaves the
// client open.
func NewEtcdFromClient(c *clientv3.Client, prefix, id string, side Side) *Etcd {
	ctx, cancel := context.WithCancel(context.Background())
	return &Etcd{
		client: c,
		prefix: strings.TrimSuffix(prefix, "/"),
		id:     id,
		side:   side,
		writer: uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (e *Etcd) Side() Side { return e.side }

func (e *Etcd) inbox(side Side) string {
	return e.prefix + "/" + e.id + "/" + side.String() + "/"
}

// Post stores frame in the peer's inbox.
func (e *Etcd) Post(ctx context.Context, frame []byte) error {
	if e.ctx.Err() != nil {
		return ErrClosed
	}
	key := fmt.Sprintf("%s%020d-%s", e.inbox(e.side.Peer()), e.seq.Add(1), e.writer)
	if _, err := e.client.Put(ctx, key, string(frame)); err != nil {
		return fmt.Errorf("channel: etcd put: %w", err)
	}
	return nil
}

// Listen starts draining the local inbox into fn.
func (e *Etcd) Listen(fn func(frame []byte)) {
	e.listen.Do(func() {
		go e.watchLoop(fn)
	})
}

func (e *Etcd) watchLoop(fn func(frame []byte)) {
	defer close(e.done)
	inbox := e.inbox(e.side)

	resp, err := e.client.Get(e.ctx, inbox,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortAscend))
	if err != nil {
		e.fail(err)
		return
	}
	for _, kv := range resp.Kvs {
		e.deliver(fn, string(kv.Key), kv.Value)
	}

	watchChan := e.client.Watch(e.ctx, inbox,
		clientv3.WithPrefix(),
		clientv3.WithRev(resp.Header.Revision+1))
	for wresp := range watchChan {
		if err := wresp.Err(); err != nil {
			e.fail(err)
			return
		}
		for _, ev := range wresp.Events {
			if ev.Type != clientv3.EventTypePut {
				continue
			}
			e.deliver(fn, string(ev.Kv.Key), ev.Kv.Value)
		}
	}
	e.fail(e.ctx.Err())
}

func (e *Etcd) deliver(fn func(frame []byte), key string, value []byte) {
	if _, err := e.client.Delete(e.ctx, key); err != nil && e.ctx.Err() != nil {
		return
	}
	fn(value)
}

func (e *Etcd) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.err = err
	}
}

// Done is closed once the watch loop has exited.
func (e *Etcd) Done() <-chan struct{} { return e.done }

// Err returns the error that stopped the watch loop.
func (e *Etcd) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *Etcd) Close() error {
	e.cancel()
	if e.ownsClient {
		return e.client.Close()
	}
	return nil
}
