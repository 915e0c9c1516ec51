package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced so that several chalk
// deployments can safely share one Redis server.
//
// Key pattern: chalk:{namespace}:board:{name}[:suffix]
// Channel pattern: chalk:{namespace}:ops

// BoardsKey returns the Redis key for the set of stored board names.
// Pattern: chalk:{namespace}:boards
func BoardsKey(namespace string) string {
	return fmt.Sprintf("chalk:%s:boards", namespace)
}

// BoardKey returns the Redis key for a board record hash.
// Pattern: chalk:{namespace}:board:{name}
func BoardKey(namespace, name string) string {
	return fmt.Sprintf("chalk:%s:board:%s", namespace, name)
}

// SnapshotKey returns the Redis key for a board's snapshot hash (id → JSON).
// Pattern: chalk:{namespace}:board:{name}:snapshot
func SnapshotKey(namespace, name string) string {
	return fmt.Sprintf("chalk:%s:board:%s:snapshot", namespace, name)
}

// DataKey returns the Redis key for a board's incremental element log.
// Pattern: chalk:{namespace}:board:{name}:data
func DataKey(namespace, name string) string {
	return fmt.Sprintf("chalk:%s:board:%s:data", namespace, name)
}

// OperationsChannel returns the Pub/Sub channel carrying client operations.
// Pattern: chalk:{namespace}:ops
func OperationsChannel(namespace string) string {
	return fmt.Sprintf("chalk:%s:ops", namespace)
}
