package persistence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// StateOwner produces and consumes a component's own saved state
type StateOwner interface {
	SaveState(ctx context.Context, c *types.Component) (types.Bundle, error)
	RestoreState(ctx context.Context, c *types.Component, state types.Bundle) error
}

// Recorder receives blob statistics
type Recorder interface {
	BlobCaptured(identity types.Identity, size int)
	BlobRestored(identity types.Identity, outcome string)
}

// Restore outcomes reported to the Recorder
const (
	OutcomeRestored = "restored"
	OutcomeAbsent   = "absent"
	OutcomeCorrupt  = "corrupt"
	OutcomeError    = "error"
)

// Options configures a Bridge
type Options struct {
	// Deferred runs capture after Stopped is committed instead of inside the
	// Stopped transition
	Deferred bool
	Recorder Recorder
}

// Bridge captures component state on Stopped and restores it between Created
// and the first Started. Blobs are keyed by identity, task and position.
type Bridge struct {
	store    Store
	owner    StateOwner
	deferred bool
	recorder Recorder
	logger   *zap.Logger
}

// NewBridge creates a persistence bridge
func NewBridge(store Store, owner StateOwner, logger *zap.Logger, opts Options) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		store:    store,
		owner:    owner,
		deferred: opts.Deferred,
		recorder: opts.Recorder,
		logger:   logger,
	}
}

// Key returns the store key of a slot
func Key(identity types.Identity, task id.TaskID, position int) string {
	return fmt.Sprintf("%s@%s/%d", identity, task, position)
}

func keyOf(c *types.Component) string {
	return Key(c.Identity, c.TaskID, c.Position)
}

// Deferred reports whether capture runs after the Stopped commit
func (b *Bridge) Deferred() bool {
	return b.deferred
}

// Handle is registered on the state machine as the persistence capability
func (b *Bridge) Handle(ctx context.Context, t *lifecycle.Transition) error {
	c := t.Component
	switch {
	case t.From == types.StateCreated && t.To == types.StateStarted:
		_, err := b.RestoreSlot(ctx, c)
		return err
	case t.From == types.StateStopped && t.To == types.StateStarted:
		c.SavedState = nil
	case c.Finishing:
	case t.To == types.StateStopped && !b.deferred:
		b.captureBestEffort(ctx, c)
	case t.To == types.StateDestroyed && c.ChangingConfigurations && t.From != types.StateStopped:
		// recreated without passing through Stopped
		b.captureBestEffort(ctx, c)
	}
	return nil
}

// StateChanged performs deferred capture once Stopped is committed
func (b *Bridge) StateChanged(c *types.Component, from, to types.State) {
	if b.deferred && to == types.StateStopped && !c.Finishing {
		b.captureBestEffort(context.Background(), c)
	}
}

// Capture asks the owner for its state, stores the encoded blob and returns
// it. Capturing an unchanged component twice yields equal blobs.
func (b *Bridge) Capture(ctx context.Context, c *types.Component) ([]byte, error) {
	state, err := b.save(ctx, c)
	if err != nil {
		return nil, err
	}

	blob, err := Encode(c, state)
	if err != nil {
		return nil, err
	}

	if err := b.store.Put(ctx, keyOf(c), blob); err != nil {
		return nil, fmt.Errorf("failed to store blob for %s: %w", c.ID, err)
	}

	c.SavedState = state
	if b.recorder != nil {
		b.recorder.BlobCaptured(c.Identity, len(blob))
	}
	return blob, nil
}

// Restore decodes blob into c through the owner. A corrupt blob is reported
// as lifecycle.ErrRestoreBlobCorrupt and leaves c untouched.
func (b *Bridge) Restore(ctx context.Context, c *types.Component, blob []byte) error {
	state, err := Decode(c, blob)
	if err != nil {
		return err
	}

	c.SavedState = state
	if err := b.owner.RestoreState(ctx, c, state.Clone()); err != nil {
		return err
	}
	c.SavedState = nil
	return nil
}

// RestoreSlot restores c from the blob stored for its slot. An absent,
// unreadable or corrupt blob is a fresh start and returns false with no error.
// Only a failure of the owner's restore callback is returned.
func (b *Bridge) RestoreSlot(ctx context.Context, c *types.Component) (bool, error) {
	key := keyOf(c)
	blob, ok, err := b.store.Get(ctx, key)
	if err != nil {
		b.logger.Warn("Saved state unavailable, starting fresh",
			zap.String("component", c.ID.String()),
			zap.String("key", key),
			zap.Error(err),
		)
		b.record(c, OutcomeError)
		return false, nil
	}
	if !ok {
		b.record(c, OutcomeAbsent)
		return false, nil
	}

	if err := b.Restore(ctx, c, blob); err != nil {
		if errors.Is(err, lifecycle.ErrRestoreBlobCorrupt) {
			b.logger.Warn("Discarding corrupt saved state",
				zap.String("component", c.ID.String()),
				zap.String("kind", string(lifecycle.KindRestoreBlobCorrupt)),
				zap.Error(err),
			)
			b.record(c, OutcomeCorrupt)
			b.Discard(ctx, c)
			return false, nil
		}
		return false, err
	}

	b.Discard(ctx, c)
	b.record(c, OutcomeRestored)
	b.logger.Debug("Restored saved state",
		zap.String("component", c.ID.String()),
		zap.String("key", key),
	)
	return true, nil
}

// Discard drops the blob held for c's slot
func (b *Bridge) Discard(ctx context.Context, c *types.Component) {
	if err := b.store.Delete(ctx, keyOf(c)); err != nil {
		b.logger.Warn("Failed to discard saved state",
			zap.String("component", c.ID.String()),
			zap.Error(err),
		)
	}
}

// Relocate moves a held blob after c changed position within its task. It
// is a no-op when nothing is stored at the old slot. A blob that cannot be
// moved is dropped, so the record starts fresh rather than restoring another
// slot's state.
func (b *Bridge) Relocate(ctx context.Context, c *types.Component, oldPosition int) {
	if oldPosition == c.Position {
		return
	}

	logger := b.logger.With(
		zap.String("component", c.ID.String()),
		zap.String("identity", string(c.Identity)),
		zap.Int("from", oldPosition),
		zap.Int("to", c.Position),
	)

	oldKey := Key(c.Identity, c.TaskID, oldPosition)
	blob, ok, err := b.store.Get(ctx, oldKey)
	if err != nil {
		logger.Warn("Failed to read saved state for relocation", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	defer func() {
		if err := b.store.Delete(ctx, oldKey); err != nil {
			logger.Warn("Failed to delete relocated saved state", zap.Error(err))
		}
	}()

	shadow := *c
	shadow.Position = oldPosition
	state, err := Decode(&shadow, blob)
	if err != nil {
		logger.Warn("Dropping unreadable saved state", zap.Error(err))
		return
	}

	moved, err := Encode(c, state)
	if err != nil {
		logger.Warn("Failed to re-encode saved state", zap.Error(err))
		return
	}
	if err := b.store.Put(ctx, keyOf(c), moved); err != nil {
		logger.Warn("Failed to relocate saved state", zap.Error(err))
	}
}

// captureBestEffort never fails the transition; a failed capture leaves no
// blob behind so the next instance starts fresh.
func (b *Bridge) captureBestEffort(ctx context.Context, c *types.Component) {
	if _, err := b.Capture(ctx, c); err != nil {
		b.logger.Warn("State capture failed",
			zap.String("component", c.ID.String()),
			zap.String("identity", string(c.Identity)),
			zap.Error(err),
		)
		c.SavedState = nil
		b.Discard(ctx, c)
	}
}

// save calls the owner, converting a panic into an error
func (b *Bridge) save(ctx context.Context, c *types.Component) (state types.Bundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("save state panicked: %v", r)
		}
	}()
	state, err = b.owner.SaveState(ctx, c)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = types.Bundle{}
	}
	return state, nil
}

func (b *Bridge) record(c *types.Component, outcome string) {
	if b.recorder != nil {
		b.recorder.BlobRestored(c.Identity, outcome)
	}
}
