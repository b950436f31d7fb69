package coordination

import (
	"context"
)

// Registry tracks which worker nodes are alive. Workers register under a
// TTL and refresh it from their heartbeat loop; nodes that stop beating
// fall out of the listing on their own.
type Registry interface {
	// RegisterNode marks a node as online for ttl seconds.
	RegisterNode(ctx context.Context, nodeID string, ttl int) error

	// GetActiveNodes lists the ids of nodes whose registration has not
	// expired.
	GetActiveNodes(ctx context.Context) ([]string, error)

	// Close terminates the registry connection.
	Close() error
}
