// Package agentdir implements directory-based agent discovery: scan a
// directory tree for source files carrying "@name"/"@description" comment
// markers (or "name:"/"description:" front-matter literals), and lazily
// construct the corresponding agent.Agent on first Get rather than up front.
// Grounded on the teacher's plugin discovery walk
// (pkg/plugins/discovery.go's scanPath/loadPluginFromManifest), adapted from
// a single-manifest-per-plugin model onto comment-marker extraction and from
// a flat plugin list onto a name-keyed, lazily-constructing registry.
package agentdir

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/relaykit/agentcore/agent"
)

// DefaultExtensions are the source-file extensions scanned by default.
var DefaultExtensions = []string{".go", ".yaml", ".yml", ".md", ".txt"}

// Manifest describes one discovered agent definition before it is built.
type Manifest struct {
	// ID defaults to the file's base name without extension; Name overrides
	// the display name if a marker supplied one.
	ID          string
	Name        string
	Description string
	Path        string
}

// Builder constructs the runnable agent.Agent described by a Manifest. It is
// called at most once per manifest; the result is cached by Registry.
type Builder func(Manifest) (agent.Agent, error)

// Scanner walks a directory tree collecting Manifests.
type Scanner struct {
	Root       string
	Extensions []string
}

// NewScanner constructs a Scanner rooted at dir, defaulting Extensions to
// DefaultExtensions.
func NewScanner(dir string) *Scanner {
	return &Scanner{Root: dir, Extensions: DefaultExtensions}
}

// Scan walks the tree rooted at s.Root, extracting a Manifest from every
// matching file. Subdirectories of the root are scanned concurrently, one
// goroutine per immediate child directory, via errgroup so a single
// malformed directory aborts the whole scan immediately instead of silently
// returning a partial manifest set — unlike composite.Parallel's children,
// a directory scan has no meaningful notion of "some results are still
// useful" once one branch is known broken.
func (s *Scanner) Scan(ctx context.Context) ([]Manifest, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("agentdir: reading %s: %w", s.Root, err)
	}

	var mu sync.Mutex
	var manifests []Manifest

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		full := filepath.Join(s.Root, e.Name())
		if e.IsDir() {
			g.Go(func() error {
				sub := &Scanner{Root: full, Extensions: s.Extensions}
				found, err := sub.Scan(gctx)
				if err != nil {
					return err
				}
				mu.Lock()
				manifests = append(manifests, found...)
				mu.Unlock()
				return nil
			})
			continue
		}
		if !s.matches(e.Name()) {
			continue
		}
		g.Go(func() error {
			m, ok, err := extractManifest(full)
			if err != nil {
				return fmt.Errorf("agentdir: scanning %s: %w", full, err)
			}
			if !ok {
				return nil
			}
			mu.Lock()
			manifests = append(manifests, m)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifests, nil
}

func (s *Scanner) matches(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range s.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

const (
	markerName        = "@name"
	markerDescription = "@description"
)

// extractManifest scans one file line by line for "@name"/"@description"
// comment markers or "name:"/"description:" literals. ok is false when
// neither marker is present, meaning the file is not an agent definition.
func extractManifest(path string) (Manifest, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, false, err
	}
	defer f.Close()

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := Manifest{ID: id, Path: path}
	var found bool

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case extractMarker(line, markerName, &m.Name):
			found = true
		case extractMarker(line, markerDescription, &m.Description):
			found = true
		case extractLiteral(line, "name:", &m.Name):
			found = true
		case extractLiteral(line, "description:", &m.Description):
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Manifest{}, false, err
	}
	if !found {
		return Manifest{}, false, nil
	}
	if m.Name == "" {
		m.Name = id
	}
	return m, true, nil
}

func extractMarker(line, marker string, dest *string) bool {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return false
	}
	*dest = strings.TrimSpace(line[idx+len(marker):])
	return true
}

func extractLiteral(line, prefix string, dest *string) bool {
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	*dest = strings.TrimSpace(strings.TrimPrefix(line, prefix))
	return true
}

// Registry lazily constructs agents from discovered manifests, caching each
// by name after its first Get.
type Registry struct {
	build Builder

	mu        sync.Mutex
	manifests map[string]Manifest
	built     map[string]agent.Agent
}

// NewRegistry constructs a Registry over the given manifests, using build to
// lazily construct each one's agent.Agent on first Get.
func NewRegistry(manifests []Manifest, build Builder) *Registry {
	byName := make(map[string]Manifest, len(manifests))
	for _, m := range manifests {
		byName[m.Name] = m
	}
	return &Registry{
		build:     build,
		manifests: byName,
		built:     make(map[string]agent.Agent),
	}
}

// Names returns the discovered agent names, in no particular order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		names = append(names, name)
	}
	return names
}

// Get returns the agent registered under name, building it on first access.
func (r *Registry) Get(name string) (agent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.built[name]; ok {
		return a, nil
	}
	m, ok := r.manifests[name]
	if !ok {
		return nil, fmt.Errorf("agentdir: no agent named %q", name)
	}
	a, err := r.build(m)
	if err != nil {
		return nil, fmt.Errorf("agentdir: building %q: %w", name, err)
	}
	r.built[name] = a
	return a, nil
}
