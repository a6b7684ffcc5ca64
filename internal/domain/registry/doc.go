// Package registry holds component definitions.
//
// A definition names a component class ("package/Class") and declares how it
// launches: affinity, launch mode, no-history, the layout and theme handed to
// the inflater, and the configuration keys it absorbs without a restart.
// Definitions may carry Go callbacks; manifest-only definitions fall back to
// saving and restoring the record's Data bundle.
//
// Components:
//   - Manager: definition lookup
//   - Seeder: loads YAML manifests matching **/*.{yaml,yml}
//   - Dispatcher: routes transitions, deliveries and state to callbacks
//
// Manifest format:
//
//	package: com.example.notes
//	affinity: notes
//	components:
//	  - class: .List
//	  - class: .Editor
//	    launch_mode: single_top
//	    layout: editor
//	    handles_config: [orientation]
//
// Example Usage:
//
//	manager := registry.NewManager()
//	loaded, failed, err := registry.NewSeeder(manager, dir, logger).Seed()
//	def, ok := manager.Get("com.example.notes/.Editor")
package registry
