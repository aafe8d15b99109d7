// Package assets validates uploaded 3D payloads and moves model assets between the
// temporary upload area and durable storage.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/The24thDS/karen-backend/internal/logger"
)

// Asset groups under a model's storage prefix.
const (
	GroupFiles  = "files"
	GroupImages = "images"
	GroupGltf   = "gltf"
)

// GltfSuffix is the extension of the primary 3D document.
const GltfSuffix = ".gltf"

var (
	// ErrInvalidName is returned for file names that are not a single path element.
	ErrInvalidName = errors.New("invalid asset name")
	// ErrNoPrimary is returned when a glTF set has no, or more than one, .gltf document.
	ErrNoPrimary = errors.New("expected exactly one .gltf file")
)

// FileInfo refers to an upload already received into the temporary directory as
// <tempDir>/<ID>_<Name>.
type FileInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Asset describes a relocated file.
type Asset struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Report is the outcome of validating a glTF payload. A report with errors
// carries no counts.
type Report struct {
	TriangleCount int64    `json:"totalTriangleCount"`
	VertexCount   int64    `json:"totalVertexCount"`
	Errors        []string `json:"errors,omitempty"`
}

func (r Report) Valid() bool { return len(r.Errors) == 0 }

// Destination is the durable location of one asset group of a model.
type Destination struct {
	Owner string
	Slug  string
	Group string
}

// Prefix is the storage prefix of the group.
func (d Destination) Prefix() string {
	return path.Join(d.Owner, d.Slug, d.Group) + "/"
}

// Key is the storage key of one asset of the group.
func (d Destination) Key(name string) string {
	return d.Prefix() + name
}

// ModelPrefix is the storage prefix holding every asset of a model.
func ModelPrefix(owner, slug string) string {
	return path.Join(owner, slug) + "/"
}

// Coordinator validates and relocates uploads and deletes stored assets.
type Coordinator interface {
	Validate(ctx context.Context, files []FileInfo) (Report, error)
	Relocate(ctx context.Context, files []FileInfo, dest Destination) ([]Asset, error)
	Purge(ctx context.Context, owner, slug string) error
	Remove(ctx context.Context, dest Destination, name string) error
	RemoveGroup(ctx context.Context, dest Destination) error
}

// Store is a durable asset backend addressed by slash-separated keys.
type Store interface {
	// Put moves the local file at src under key.
	Put(ctx context.Context, key, src string, size int64) error
	Remove(ctx context.Context, key string) error
	RemovePrefix(ctx context.Context, prefix string) error
}

// Manager is the Coordinator backed by a temporary upload directory and a Store.
type Manager struct {
	tempDir string
	store   Store
	log     *logger.Logger
}

var _ Coordinator = (*Manager)(nil)

func NewManager(tempDir string, store Store, log *logger.Logger) *Manager {
	return &Manager{tempDir: tempDir, store: store, log: log.With("component", "assets")}
}

// TempPath is where the upload described by f was received.
func (m *Manager) TempPath(f FileInfo) string {
	return filepath.Join(m.tempDir, f.ID+"_"+f.Name)
}

// Validate checks the glTF payload formed by files. Payload problems are
// reported in the Report; the error is reserved for failures of the validator
// itself.
func (m *Manager) Validate(ctx context.Context, files []FileInfo) (Report, error) {
	for _, f := range files {
		if err := checkName(f.Name); err != nil {
			return Report{Errors: []string{err.Error()}}, nil
		}
		if err := checkName(f.ID); err != nil {
			return Report{Errors: []string{err.Error()}}, nil
		}
	}
	primary, err := PrimaryGltf(files)
	if err != nil {
		return Report{Errors: []string{err.Error()}}, nil
	}
	return validateGltf(ctx, m.tempDir, primary, files)
}

// Relocate moves every file to dest. When one of them fails, the files this call
// already moved are deleted again before the error is returned.
func (m *Manager) Relocate(ctx context.Context, files []FileInfo, dest Destination) ([]Asset, error) {
	for _, f := range files {
		if err := checkName(f.Name); err != nil {
			return nil, err
		}
		if err := checkName(f.ID); err != nil {
			return nil, err
		}
	}
	moved := make([]Asset, 0, len(files))
	for _, f := range files {
		src := m.TempPath(f)
		info, err := os.Stat(src)
		if err == nil {
			err = m.store.Put(ctx, dest.Key(f.Name), src, info.Size())
		}
		if err != nil {
			m.rollback(ctx, dest, moved)
			return nil, fmt.Errorf("relocate %s: %w", f.Name, err)
		}
		moved = append(moved, Asset{Name: f.Name, Size: info.Size(), Type: TypeOf(f.Name)})
	}
	return moved, nil
}

func (m *Manager) rollback(ctx context.Context, dest Destination, moved []Asset) {
	for _, a := range moved {
		if err := m.store.Remove(ctx, dest.Key(a.Name)); err != nil {
			m.log.Warn("could not remove relocated asset", "key", dest.Key(a.Name), "error", err)
		}
	}
}

// Purge deletes every stored asset of a model.
func (m *Manager) Purge(ctx context.Context, owner, slug string) error {
	if err := checkName(owner); err != nil {
		return err
	}
	if err := checkName(slug); err != nil {
		return err
	}
	return m.store.RemovePrefix(ctx, ModelPrefix(owner, slug))
}

// Remove deletes a single stored asset.
func (m *Manager) Remove(ctx context.Context, dest Destination, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return m.store.Remove(ctx, dest.Key(name))
}

// RemoveGroup deletes every asset of one group. A glTF document and its
// resources are only meaningful together, so they are removed as a group.
func (m *Manager) RemoveGroup(ctx context.Context, dest Destination) error {
	return m.store.RemovePrefix(ctx, dest.Prefix())
}

// PrimaryGltf returns the single .gltf document of a glTF set.
func PrimaryGltf(files []FileInfo) (FileInfo, error) {
	var found []FileInfo
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Name), GltfSuffix) {
			found = append(found, f)
		}
	}
	if len(found) != 1 {
		return FileInfo{}, fmt.Errorf("%w, got %d", ErrNoPrimary, len(found))
	}
	return found[0], nil
}

// TypeOf is the lowercased extension of name without the dot.
func TypeOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
