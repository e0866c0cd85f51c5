package entity

import (
	"errors"
	"fmt"

	"github.com/LeoCTH/gravity-guns/internal/protocol"
)

var ErrNoBlockStates = errors.New("compact block states need at least one state")

// CompactBlockStates is the immutable list of block states a block entity
// carries.
type CompactBlockStates struct {
	states []int32
}

func NewCompactBlockStates(states ...int32) (CompactBlockStates, error) {
	if len(states) == 0 {
		return CompactBlockStates{}, ErrNoBlockStates
	}
	copied := make([]int32, len(states))
	copy(copied, states)
	return CompactBlockStates{states: copied}, nil
}

func (c CompactBlockStates) Len() int { return len(c.states) }

func (c CompactBlockStates) At(i int) int32 { return c.states[i] }

// First is the state the entity renders as and restores to.
func (c CompactBlockStates) First() int32 {
	if len(c.states) == 0 {
		return 0
	}
	return c.states[0]
}

func (c CompactBlockStates) States() []int32 {
	out := make([]int32, len(c.states))
	copy(out, c.states)
	return out
}

// Encode returns the network form: a VarInt count followed by one VarInt per
// state.
func (c CompactBlockStates) Encode() []byte {
	return protocol.AppendVarintArray(nil, c.states)
}

func DecodeCompactBlockStates(data []byte) (CompactBlockStates, error) {
	states, err := protocol.ReadVarintArray(data)
	if err != nil {
		return CompactBlockStates{}, fmt.Errorf("decode block states: %w", err)
	}
	return NewCompactBlockStates(states...)
}
