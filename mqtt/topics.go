package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gosrix/srix"
)

// Topics builds the per-node topic names.
type Topics struct {
	ClientID string
}

// Status topics.
func (t Topics) Tag() string   { return t.status("tag") }
func (t Topics) Write() string { return t.status("write") }
func (t Topics) Ping() string  { return t.status("ping") }

func (t Topics) status(leaf string) string {
	return fmt.Sprintf("srix/status/node/%s/%s", t.ClientID, leaf)
}

// Control returns the control topic for one action.
func (t Topics) Control(a Action) string {
	return fmt.Sprintf("srix/control/node/%s/%s", t.ClientID, a)
}

// ControlWildcard matches every control topic of this node.
func (t Topics) ControlWildcard() string {
	return fmt.Sprintf("srix/control/node/%s/+", t.ClientID)
}

// Action is a remote request.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionModify Action = "modify"
)

// Command is a decoded control message.
type Command struct {
	Action Action
	Block  int
	Value  uint32
}

type modifyPayload struct {
	Block *int   `json:"block"`
	Value string `json:"value"`
}

// ParseCommand decodes a message received on one of this node's control topics.
func (t Topics) ParseCommand(topic string, payload []byte) (Command, error) {
	prefix := fmt.Sprintf("srix/control/node/%s/", t.ClientID)
	if !strings.HasPrefix(topic, prefix) {
		return Command{}, fmt.Errorf("not a control topic: %s", topic)
	}

	switch a := Action(strings.TrimPrefix(topic, prefix)); a {
	case ActionRead, ActionWrite:
		return Command{Action: a}, nil
	case ActionModify:
		var p modifyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Command{}, fmt.Errorf("decode modify request: %w", err)
		}
		if p.Block == nil {
			return Command{}, fmt.Errorf("modify request without block")
		}
		if *p.Block < 0 || *p.Block >= srix.Blocks {
			return Command{}, fmt.Errorf("block %d out of range", *p.Block)
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(p.Value), "0x"), 16, 32)
		if err != nil {
			return Command{}, fmt.Errorf("invalid value %q", p.Value)
		}
		return Command{Action: a, Block: *p.Block, Value: uint32(v)}, nil
	default:
		return Command{}, fmt.Errorf("unknown action %q", a)
	}
}

// TagStatus is published on the tag topic after every read, import or modification.
type TagStatus struct {
	UID    string   `json:"uid"`
	State  string   `json:"state"`
	Locked bool     `json:"locked"`
	Dirty  []int    `json:"dirty"`
	Blocks []string `json:"blocks,omitempty"`
}

// WriteStatus is published on the write topic after a flush attempt.
type WriteStatus struct {
	UID     string `json:"uid"`
	Written int    `json:"written"`
	Pending int    `json:"pending"`
	Error   string `json:"error,omitempty"`
}

// NewWriteStatus reports a flush of s that wrote written blocks and ended with err.
func NewWriteStatus(s srix.Snapshot, written int, err error) WriteStatus {
	st := WriteStatus{
		UID:     fmt.Sprintf("%016X", s.UID),
		Written: written,
		Pending: s.DirtyCount(),
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}

// Ping is published on the ping topic.
type Ping struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

// NewTagStatus summarizes a snapshot. Block contents are included when withBlocks is set.
func NewTagStatus(s srix.Snapshot, withBlocks bool) TagStatus {
	st := TagStatus{
		UID:    fmt.Sprintf("%016X", s.UID),
		State:  s.State.String(),
		Locked: s.Locked,
		Dirty:  []int{},
	}
	for i, d := range s.Dirty {
		if d {
			st.Dirty = append(st.Dirty, i)
		}
	}
	if withBlocks {
		st.Blocks = make([]string, len(s.Words))
		for i, w := range s.Words {
			st.Blocks[i] = fmt.Sprintf("%08X", w)
		}
	}
	return st
}
