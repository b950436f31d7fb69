package etcd

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const nodePrefix = "/slurmnode/workers/"

// EtcdRegistry is the etcd-backed worker registry. Each worker puts its id
// under nodePrefix with a lease; repeated heartbeats re-grant the lease so
// dead workers expire.
type EtcdRegistry struct {
	client *clientv3.Client
}

func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return &EtcdRegistry{client: cli}, nil
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

// RegisterNode writes the node key under a fresh lease. Called from the
// worker's heartbeat ticker, so each beat replaces the previous lease.
func (r *EtcdRegistry) RegisterNode(ctx context.Context, nodeID string, ttl int) error {
	lease, err := r.client.Grant(ctx, int64(ttl))
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	_, err = r.client.Put(ctx, nodePrefix+nodeID, "ONLINE", clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register node: %w", err)
	}
	return nil
}

// GetActiveNodes lists workers with a live lease.
func (r *EtcdRegistry) GetActiveNodes(ctx context.Context) ([]string, error) {
	resp, err := r.client.Get(ctx, nodePrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	var nodes []string
	for _, kv := range resp.Kvs {
		nodes = append(nodes, strings.TrimPrefix(string(kv.Key), nodePrefix))
	}
	return nodes, nil
}
