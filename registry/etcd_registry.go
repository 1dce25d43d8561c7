package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const defaultPrefix = "/bridge-rpc/hosts"

// EtcdRegistry stores endpoints in etcd v3:
//
//	Key:   {prefix}/{name}/{addr}
//	Value: JSON-encoded Endpoint
//
// Every registration is bound to a lease kept alive in the background, so the entry of a
// crashed host expires on its own.
type EtcdRegistry struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: connect etcd: %w", err)
	}
	return &EtcdRegistry{client: c, prefix: defaultPrefix}, nil
}

// Client exposes the underlying etcd client, e.g. to share it with a mailbox channel.
func (r *EtcdRegistry) Client() *clientv3.Client { return r.client }

func (r *EtcdRegistry) keyPrefix(name string) string {
	return r.prefix + "/" + name + "/"
}

// Register stores endpoint under name with a lease of ttl seconds and keeps the lease
// alive until the registry is closed. ctx bounds the registration itself.
//
// The lease ID stays local, so one EtcdRegistry can be shared by several servers.
func (r *EtcdRegistry) Register(ctx context.Context, name string, endpoint Endpoint, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	val, err := json.Marshal(endpoint)
	if err != nil {
		return err
	}

	if _, err := r.client.Put(ctx, r.keyPrefix(name)+endpoint.Addr, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: put %s: %w", name, err)
	}

	ch, err := r.client.KeepAlive(context.WithoutCancel(ctx), lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keepalive: %w", err)
	}
	// Drain keepalive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes the endpoint with addr from name.
func (r *EtcdRegistry) Deregister(ctx context.Context, name string, addr string) error {
	if _, err := r.client.Delete(ctx, r.keyPrefix(name)+addr); err != nil {
		return fmt.Errorf("registry: delete %s: %w", name, err)
	}
	return nil
}

// Watch emits the full endpoint list of name after every change, until ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, name string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)
	go func() {
		defer close(ch)
		for range r.client.Watch(ctx, r.keyPrefix(name), clientv3.WithPrefix()) {
			endpoints, err := r.Discover(ctx, name)
			if err != nil {
				continue
			}
			select {
			case ch <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Discover returns every endpoint currently registered under name, ordered by address.
func (r *EtcdRegistry) Discover(ctx context.Context, name string) ([]Endpoint, error) {
	prefix := r.keyPrefix(name)
	resp, err := r.client.Get(ctx, prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("registry: discover %s: %w", name, err)
	}

	endpoints := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var endpoint Endpoint
		if err := json.Unmarshal(kv.Value, &endpoint); err != nil {
			continue // Skip malformed entries
		}
		if endpoint.Addr == "" {
			endpoint.Addr = strings.TrimPrefix(string(kv.Key), prefix)
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, nil
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
