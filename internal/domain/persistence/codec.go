package persistence

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// blobVersion is bumped whenever the envelope layout changes
const blobVersion = 1

// envelope is the serialized form of one captured component
type envelope struct {
	Version  int            `json:"version"`
	Identity types.Identity `json:"identity"`
	Task     id.TaskID      `json:"task"`
	Position int            `json:"position"`
	State    types.Bundle   `json:"state"`
}

// Sorted keys make two captures of the same state byte-identical.
var api = sonic.Config{
	SortMapKeys: true,
	CopyString:  true,
	UseInt64:    true,
}.Froze()

var (
	encoder, _ = zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

// Encode produces the opaque blob for a component's saved state
func Encode(c *types.Component, state types.Bundle) ([]byte, error) {
	raw, err := api.Marshal(envelope{
		Version:  blobVersion,
		Identity: c.Identity,
		Task:     c.TaskID,
		Position: c.Position,
		State:    state,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state for %s: %w", c.ID, err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode opens a blob and checks that it belongs to c's slot. Any failure is
// reported as lifecycle.ErrRestoreBlobCorrupt.
func Decode(c *types.Component, blob []byte) (types.Bundle, error) {
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrRestoreBlobCorrupt, err)
	}

	var env envelope
	if err := api.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrRestoreBlobCorrupt, err)
	}

	switch {
	case env.Version != blobVersion:
		return nil, fmt.Errorf("%w: version %d", lifecycle.ErrRestoreBlobCorrupt, env.Version)
	case env.Identity != c.Identity:
		return nil, fmt.Errorf("%w: blob belongs to %s", lifecycle.ErrRestoreBlobCorrupt, env.Identity)
	case env.Task != c.TaskID || env.Position != c.Position:
		return nil, fmt.Errorf("%w: blob belongs to %s@%d", lifecycle.ErrRestoreBlobCorrupt, env.Task, env.Position)
	}

	if env.State == nil {
		env.State = types.Bundle{}
	}
	return env.State, nil
}
