// Package id issues the identifiers of the lifecycle host.
//
// Every id is a ULID behind a short kind prefix (cmp_, task_, win_, req_).
// ULIDs sort by creation time, so ordering by id in logs and dumps follows
// launch order. Each kind is its own string type, so a TaskID cannot be
// passed where a ComponentID is expected.
//
// Component and task ids are arena keys. Holding an id never keeps a record
// alive; looking up an id that is gone is a normal, checked condition.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ComponentID identifies one instantiated component record
type ComponentID string

// TaskID identifies a task (back stack)
type TaskID string

// WindowID identifies a window handed out by the compositor
type WindowID string

// RequestID identifies a traced operation
type RequestID string

const (
	ComponentPrefix = "cmp"
	TaskPrefix      = "task"
	WindowPrefix    = "win"
	RequestPrefix   = "req"
)

// ErrMalformed is returned for strings that are not prefixed ULIDs of the
// expected kind
var ErrMalformed = errors.New("malformed id")

// Generator mints monotonic ULIDs. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewGenerator returns a generator drawing monotonic entropy from
// crypto/rand, so ids minted within one millisecond still increase
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

var shared = NewGenerator()

// Generate mints a ULID stamped with the current time
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Now(), g.entropy)
}

// GenerateString mints a ULID in its canonical text form
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix mints prefix_ULID
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + "_" + g.GenerateString()
}

func NewComponentID() ComponentID { return ComponentID(shared.GenerateWithPrefix(ComponentPrefix)) }
func NewTaskID() TaskID           { return TaskID(shared.GenerateWithPrefix(TaskPrefix)) }
func NewWindowID() WindowID       { return WindowID(shared.GenerateWithPrefix(WindowPrefix)) }
func NewRequestID() RequestID     { return RequestID(shared.GenerateWithPrefix(RequestPrefix)) }

func (id ComponentID) String() string { return string(id) }
func (id TaskID) String() string      { return string(id) }
func (id WindowID) String() string    { return string(id) }
func (id RequestID) String() string   { return string(id) }

// CreatedAt returns the time embedded in the id, or the zero time when the
// id is malformed
func (id ComponentID) CreatedAt() time.Time { return embedded(string(id), ComponentPrefix) }

// CreatedAt returns the time embedded in the id, or the zero time when the
// id is malformed
func (id TaskID) CreatedAt() time.Time { return embedded(string(id), TaskPrefix) }

// ParseComponentID validates s as a component id
func ParseComponentID(s string) (ComponentID, error) {
	return parsePrefixed[ComponentID](s, ComponentPrefix)
}

// ParseTaskID validates s as a task id
func ParseTaskID(s string) (TaskID, error) {
	return parsePrefixed[TaskID](s, TaskPrefix)
}

func parsePrefixed[T ~string](s, prefix string) (T, error) {
	if !IsValidPrefixed(s, prefix) {
		return "", fmt.Errorf("%w: %q is not a %s id", ErrMalformed, s, prefix)
	}
	return T(s), nil
}

// IsValid reports whether s is a bare ULID
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// IsValidPrefixed reports whether s has the form prefix_ULID
func IsValidPrefixed(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	return ok && IsValid(rest)
}

// Timestamp returns the creation time embedded in a bare ULID
func Timestamp(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

func embedded(s, prefix string) time.Time {
	ts, err := Timestamp(strings.TrimPrefix(s, prefix+"_"))
	if err != nil {
		return time.Time{}
	}
	return ts
}
