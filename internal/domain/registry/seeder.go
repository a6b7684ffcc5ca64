package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// ManifestPattern matches manifest files anywhere under the manifest dir
const ManifestPattern = "**/*.{yaml,yml}"

// Manifest declares the components of one package
type Manifest struct {
	Package    string       `yaml:"package"`
	Affinity   string       `yaml:"affinity"`
	Components []Definition `yaml:"components"`
}

// Seeder loads component manifests from disk
type Seeder struct {
	manager *Manager
	dir     string
	logger  *zap.Logger
}

// NewSeeder creates a new manifest seeder
func NewSeeder(manager *Manager, dir string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		manager: manager,
		dir:     dir,
		logger:  logger,
	}
}

// Seed loads every manifest under the directory. A missing directory is not
// an error; individual bad manifests are logged and skipped.
func (s *Seeder) Seed() (loaded int, failed int, err error) {
	if _, statErr := os.Stat(s.dir); os.IsNotExist(statErr) {
		s.logger.Warn("Manifest directory not found", zap.String("dir", s.dir))
		return 0, 0, nil
	}

	fsys := os.DirFS(s.dir)
	matches, err := doublestar.Glob(fsys, ManifestPattern)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to scan manifests: %w", err)
	}

	for _, rel := range matches {
		n, loadErr := s.loadManifest(fsys, rel)
		if loadErr != nil {
			s.logger.Warn("Failed to load manifest",
				zap.String("path", rel),
				zap.Error(loadErr),
			)
			failed++
			continue
		}
		loaded += n
	}

	s.logger.Info("Seeding complete",
		zap.Int("components", loaded),
		zap.Int("failed_manifests", failed),
	)
	return loaded, failed, nil
}

func (s *Seeder) loadManifest(fsys fs.FS, rel string) (int, error) {
	data, err := fs.ReadFile(fsys, rel)
	if err != nil {
		return 0, fmt.Errorf("failed to read manifest: %w", err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return 0, err
	}

	source := filepath.Join(s.dir, rel)
	for i := range manifest.Components {
		def := manifest.Components[i]
		def.Source = source
		if err := s.manager.Register(&def); err != nil {
			return i, err
		}
	}
	return len(manifest.Components), nil
}

// ParseManifest decodes a manifest and fills each definition's identity
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Package == "" {
		return nil, fmt.Errorf("manifest package is required")
	}

	for i := range m.Components {
		def := &m.Components[i]
		if def.Class == "" {
			return nil, fmt.Errorf("manifest %s: component %d has no class", m.Package, i)
		}
		def.Identity = types.Identity(m.Package + "/" + strings.TrimSpace(def.Class))
		if def.Affinity == "" {
			def.Affinity = m.Affinity
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}
