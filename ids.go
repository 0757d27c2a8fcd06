package ledgerx

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// IDGenerator allocates account IDs. Implementations must be safe for
// concurrent use and never hand out the same ID twice.
type IDGenerator interface {
	NewID() string
}

const (
	IDKindSnowflake = "snowflake"
	IDKindUUID      = "uuid"
)

type SnowflakeIDs struct {
	node *snowflake.Node
}

func NewSnowflakeIDs(node int64) (*SnowflakeIDs, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &SnowflakeIDs{node: n}, nil
}

func (s *SnowflakeIDs) NewID() string {
	return s.node.Generate().String()
}

type UUIDIDs struct{}

func (UUIDIDs) NewID() string {
	return uuid.NewString()
}

func NewIDGenerator(kind string, node int64) (IDGenerator, error) {
	switch kind {
	case "", IDKindSnowflake:
		ids, err := NewSnowflakeIDs(node)
		if err != nil {
			return nil, err
		}
		return ids, nil
	case IDKindUUID:
		return UUIDIDs{}, nil
	default:
		return nil, fmt.Errorf("unknown id generator %q", kind)
	}
}
