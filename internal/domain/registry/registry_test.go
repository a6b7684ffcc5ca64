package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

const notesManifest = `
package: com.example.notes
affinity: notes
components:
  - class: .List
  - class: .Editor
    launch_mode: single_top
    layout: editor
    theme: dark
    handles_config: [orientation, locale]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(notesManifest))
	require.NoError(t, err)
	require.Len(t, m.Components, 2)

	list := m.Components[0]
	assert.Equal(t, types.Identity("com.example.notes/.List"), list.Identity)
	assert.Equal(t, LaunchStandard, list.LaunchMode)
	assert.Equal(t, "notes", list.ResolveAffinity())

	editor := m.Components[1]
	assert.Equal(t, LaunchSingleTop, editor.LaunchMode)
	assert.Equal(t, "editor", editor.Layout)
	assert.Equal(t, "dark", editor.Theme)
	assert.True(t, editor.Handles([]string{"orientation"}))
	assert.False(t, editor.Handles([]string{"orientation", "density"}))
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing package", "components:\n  - class: .A\n"},
		{"missing class", "package: p\ncomponents:\n  - layout: x\n"},
		{"unknown field", "package: p\nversion: 2\n"},
		{"bad launch mode", "package: p\ncomponents:\n  - class: .A\n    launch_mode: sideways\n"},
		{"not yaml", "package: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestSeederLoadsNestedManifests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.yaml"), notesManifest)
	writeFile(t, filepath.Join(dir, "vendor", "mail", "app.yml"),
		"package: com.example.mail\ncomponents:\n  - class: .Inbox\n")
	writeFile(t, filepath.Join(dir, "broken.yaml"), "package: [")
	writeFile(t, filepath.Join(dir, "README.md"), "ignored")

	m := NewManager()
	loaded, failed, err := NewSeeder(m, dir, nil).Seed()
	require.NoError(t, err)
	assert.Equal(t, 3, loaded)
	assert.Equal(t, 1, failed)

	def, ok := m.Get("com.example.mail/.Inbox")
	require.True(t, ok)
	assert.Equal(t, "com.example.mail", def.ResolveAffinity())
	assert.Contains(t, def.Source, "app.yml")

	notes := "notes"
	assert.Len(t, m.List(&notes), 2)
	assert.Len(t, m.List(nil), 3)
}

func TestSeederMissingDirectory(t *testing.T) {
	loaded, failed, err := NewSeeder(NewManager(), filepath.Join(t.TempDir(), "nope"), nil).Seed()
	require.NoError(t, err)
	assert.Zero(t, loaded)
	assert.Zero(t, failed)
}

func TestManagerLookup(t *testing.T) {
	m := NewManager()
	require.Error(t, m.Register(&Definition{}))
	require.NoError(t, m.Register(&Definition{Identity: "a/.B"}))

	_, err := m.MustGet("x/.Y")
	assert.ErrorIs(t, err, ErrUnknownComponent)

	def, err := m.MustGet("a/.B")
	require.NoError(t, err)
	assert.Equal(t, LaunchStandard, def.LaunchMode)

	assert.True(t, m.Delete("a/.B"))
	assert.False(t, m.Delete("a/.B"))
	assert.Zero(t, m.Len())
}

func TestDispatcherDefaultsToData(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(NewManager())
	c := &types.Component{Identity: "unregistered/.A", Data: types.Bundle{"k": "v"}}

	saved, err := d.SaveState(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, types.Bundle{"k": "v"}, saved)

	saved["k"] = "changed"
	assert.Equal(t, "v", c.Data["k"], "saved bundle is a copy")

	require.NoError(t, d.RestoreState(ctx, c, types.Bundle{"k": "restored"}))
	assert.Equal(t, "restored", c.Data["k"])

	require.NoError(t, d.Handle(ctx, &lifecycle.Transition{Component: c}))
	require.NoError(t, d.DeliverResult(ctx, c, types.ResultPayload{}))
}

func TestDispatcherRoutesCallbacks(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	var events []string
	boom := errors.New("boom")

	require.NoError(t, m.Register(&Definition{
		Identity: "a/.Main",
		Callbacks: Callbacks{
			OnTransition: func(ctx context.Context, t *lifecycle.Transition) error {
				events = append(events, "transition:"+t.Event.String())
				return nil
			},
			OnResult: func(ctx context.Context, c *types.Component, r types.ResultPayload) error {
				events = append(events, "result")
				return nil
			},
			OnNewIntent: func(ctx context.Context, c *types.Component, req *types.Request) error {
				events = append(events, "intent:"+req.Action)
				return nil
			},
			OnConfigChange: func(ctx context.Context, c *types.Component, change types.ConfigChange) error {
				return boom
			},
		},
	}))

	d := NewDispatcher(m)
	c := &types.Component{Identity: "a/.Main"}
	require.NoError(t, d.Handle(ctx, &lifecycle.Transition{Component: c, Event: types.EventStart}))
	require.NoError(t, d.DeliverResult(ctx, c, types.ResultPayload{RequestCode: 7}))
	require.NoError(t, d.DeliverNewIntent(ctx, c, &types.Request{Action: "view"}))
	assert.ErrorIs(t, d.ConfigChanged(ctx, c, types.ConfigChange{}), boom)

	assert.Equal(t, []string{"transition:start", "result", "intent:view"}, events)
}
