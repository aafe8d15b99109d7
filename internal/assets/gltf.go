package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
)

// gltfRefs lists the external resources a glTF document points at.
type gltfRefs struct {
	Buffers []struct {
		URI string `json:"uri"`
	} `json:"buffers"`
	Images []struct {
		URI string `json:"uri"`
	} `json:"images"`
}

// validateGltf stages the uploaded set under its original names, resolves every
// external resource of the primary document against it and decodes the result.
// Resources are matched by their last path segment.
func validateGltf(ctx context.Context, tempDir string, primary FileInfo, files []FileInfo) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	raw, err := os.ReadFile(filepath.Join(tempDir, primary.ID+"_"+primary.Name))
	if err != nil {
		return Report{}, fmt.Errorf("read gltf document: %w", err)
	}
	var refs gltfRefs
	if err := json.Unmarshal(raw, &refs); err != nil {
		return Report{Errors: []string{fmt.Sprintf("%s is not a valid glTF document: %v", primary.Name, err)}}, nil
	}

	staging, err := os.MkdirTemp("", "gltf-")
	if err != nil {
		return Report{}, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := os.WriteFile(filepath.Join(staging, primary.Name), raw, 0o644); err != nil {
		return Report{}, fmt.Errorf("stage gltf document: %w", err)
	}

	byName := make(map[string]FileInfo, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}

	var problems []string
	uris := make([]string, 0, len(refs.Buffers)+len(refs.Images))
	for _, b := range refs.Buffers {
		uris = append(uris, b.URI)
	}
	for _, img := range refs.Images {
		uris = append(uris, img.URI)
	}
	for _, uri := range uris {
		if uri == "" || strings.HasPrefix(uri, "data:") {
			continue
		}
		rel, err := url.PathUnescape(uri)
		if err != nil || !filepath.IsLocal(filepath.FromSlash(rel)) {
			problems = append(problems, fmt.Sprintf("%s is not a valid resource reference.", uri))
			continue
		}
		f, ok := byName[path.Base(rel)]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s is referenced in the glTF document but it was not uploaded.", uri))
			continue
		}
		if err := stage(filepath.Join(tempDir, f.ID+"_"+f.Name), filepath.Join(staging, filepath.FromSlash(rel))); err != nil {
			return Report{}, err
		}
	}
	if len(problems) > 0 {
		return Report{Errors: problems}, nil
	}

	doc, err := gltf.Open(filepath.Join(staging, primary.Name))
	if err != nil {
		return Report{Errors: []string{err.Error()}}, nil
	}
	return countGeometry(doc)
}

func stage(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	if err := os.Symlink(src, dst); err != nil {
		return copyFile(src, dst)
	}
	return nil
}

// countGeometry sums vertex and triangle counts over every mesh primitive. A
// primitive's vertex count is the count of its POSITION accessor.
func countGeometry(doc *gltf.Document) (Report, error) {
	var report Report
	var problems []string
	for mi, mesh := range doc.Meshes {
		for pi, prim := range mesh.Primitives {
			posIdx, ok := prim.Attributes["POSITION"]
			if !ok {
				continue
			}
			if int(posIdx) >= len(doc.Accessors) {
				problems = append(problems, fmt.Sprintf("mesh %d primitive %d: POSITION accessor %d does not exist.", mi, pi, posIdx))
				continue
			}
			vertices := int64(doc.Accessors[posIdx].Count)
			report.VertexCount += vertices

			elements := vertices
			if prim.Indices != nil {
				idx := *prim.Indices
				if int(idx) >= len(doc.Accessors) {
					problems = append(problems, fmt.Sprintf("mesh %d primitive %d: indices accessor %d does not exist.", mi, pi, idx))
					continue
				}
				elements = int64(doc.Accessors[idx].Count)
			}
			report.TriangleCount += triangles(prim.Mode, elements)
		}
	}
	if len(problems) > 0 {
		return Report{Errors: problems}, nil
	}
	return report, nil
}

func triangles(mode gltf.PrimitiveMode, elements int64) int64 {
	switch mode {
	case gltf.PrimitiveTriangles:
		return elements / 3
	case gltf.PrimitiveTriangleStrip, gltf.PrimitiveTriangleFan:
		if elements < 3 {
			return 0
		}
		return elements - 2
	default:
		return 0
	}
}
