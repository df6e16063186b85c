package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node    *snowflake.Node
	nodeErr error
	once    sync.Once
)

// Initialize sets up the Snowflake ID generator with a node ID.
// Only the first call has any effect.
func Initialize(nodeID int64) error {
	once.Do(func() {
		node, nodeErr = snowflake.NewNode(nodeID)
	})
	return nodeErr
}

// GenerateID generates a new Snowflake ID as a string
func GenerateID() string {
	if err := Initialize(1); err != nil || node == nil {
		return ""
	}
	return node.Generate().String()
}

// AttemptID returns an identifier for one account-linking attempt, used to
// correlate the start and callback audit rows.
func AttemptID() string {
	return "lnk_" + GenerateID()
}
