package assets

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The24thDS/karen-backend/internal/logger"
)

const triangleGltf = `{
  "asset": {"version": "2.0"},
  "buffers": [{"uri": "tri.bin", "byteLength": 36}],
  "bufferViews": [{"buffer": 0, "byteLength": 36}],
  "accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"}],
  "meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}]
}`

func triangleBuffer() []byte {
	buf := make([]byte, 0, 36)
	for _, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

type fixture struct {
	temp    string
	uploads string
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{temp: filepath.Join(root, "tmp"), uploads: filepath.Join(root, "uploads")}
	require.NoError(t, os.MkdirAll(f.temp, 0o755))
	f.manager = NewManager(f.temp, NewLocalStore(f.uploads), logger.Nop())
	return f
}

func (f *fixture) upload(t *testing.T, id, name string, data []byte) FileInfo {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.temp, id+"_"+name), data, 0o644))
	return FileInfo{ID: id, Name: name}
}

func TestValidate_CountsGeometry(t *testing.T) {
	f := newFixture(t)
	files := []FileInfo{
		f.upload(t, "1", "scene.gltf", []byte(triangleGltf)),
		f.upload(t, "2", "tri.bin", triangleBuffer()),
	}

	report, err := f.manager.Validate(context.Background(), files)
	require.NoError(t, err)
	require.True(t, report.Valid(), report.Errors)
	assert.Equal(t, int64(3), report.VertexCount)
	assert.Equal(t, int64(1), report.TriangleCount)
}

func TestValidate_ReportsMissingResource(t *testing.T) {
	f := newFixture(t)
	files := []FileInfo{f.upload(t, "1", "scene.gltf", []byte(triangleGltf))}

	report, err := f.manager.Validate(context.Background(), files)
	require.NoError(t, err)
	assert.False(t, report.Valid())
	assert.Contains(t, report.Errors[0], "tri.bin")
}

func TestValidate_RequiresExactlyOneDocument(t *testing.T) {
	f := newFixture(t)

	report, err := f.manager.Validate(context.Background(), []FileInfo{f.upload(t, "2", "tri.bin", triangleBuffer())})
	require.NoError(t, err)
	assert.False(t, report.Valid())

	_, err = PrimaryGltf([]FileInfo{{ID: "1", Name: "a.gltf"}, {ID: "2", Name: "b.GLTF"}})
	assert.ErrorIs(t, err, ErrNoPrimary)
}

func TestValidate_RejectsMalformedDocument(t *testing.T) {
	f := newFixture(t)
	report, err := f.manager.Validate(context.Background(), []FileInfo{f.upload(t, "1", "scene.gltf", []byte("{not json"))})
	require.NoError(t, err)
	assert.False(t, report.Valid())
}

func TestRelocate_MovesIntoDestination(t *testing.T) {
	f := newFixture(t)
	files := []FileInfo{
		f.upload(t, "1", "chair.obj", []byte("v 0 0 0")),
		f.upload(t, "2", "Chair.PNG", []byte("png")),
	}
	dest := Destination{Owner: "alice", Slug: "chair_1", Group: GroupFiles}

	moved, err := f.manager.Relocate(context.Background(), files, dest)
	require.NoError(t, err)
	assert.Equal(t, []Asset{{Name: "chair.obj", Size: 7, Type: "obj"}, {Name: "Chair.PNG", Size: 3, Type: "png"}}, moved)

	assert.FileExists(t, filepath.Join(f.uploads, "alice", "chair_1", "files", "chair.obj"))
	assert.NoFileExists(t, filepath.Join(f.temp, "1_chair.obj"))
}

func TestRelocate_FailureRemovesAlreadyMovedAssets(t *testing.T) {
	f := newFixture(t)
	files := []FileInfo{
		f.upload(t, "1", "chair.obj", []byte("v 0 0 0")),
		{ID: "2", Name: "missing.obj"},
	}
	dest := Destination{Owner: "alice", Slug: "chair_1", Group: GroupFiles}

	_, err := f.manager.Relocate(context.Background(), files, dest)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(f.uploads, "alice", "chair_1", "files", "chair.obj"))
}

func TestRelocate_RejectsPathTraversal(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Relocate(context.Background(), []FileInfo{{ID: "1", Name: "../../etc/passwd"}},
		Destination{Owner: "alice", Slug: "chair_1", Group: GroupImages})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestPurge_RemovesEveryGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.Relocate(ctx, []FileInfo{f.upload(t, "1", "a.png", []byte("a"))},
		Destination{Owner: "alice", Slug: "chair_1", Group: GroupImages})
	require.NoError(t, err)
	_, err = f.manager.Relocate(ctx, []FileInfo{f.upload(t, "2", "a.obj", []byte("a"))},
		Destination{Owner: "alice", Slug: "chair_1", Group: GroupFiles})
	require.NoError(t, err)

	require.NoError(t, f.manager.Purge(ctx, "alice", "chair_1"))
	assert.NoDirExists(t, filepath.Join(f.uploads, "alice", "chair_1"))
}

func TestRemove_MissingAssetIsNotAnError(t *testing.T) {
	f := newFixture(t)
	err := f.manager.Remove(context.Background(), Destination{Owner: "alice", Slug: "chair_1", Group: GroupImages}, "gone.png")
	assert.NoError(t, err)
}

func TestTriangles(t *testing.T) {
	assert.Equal(t, int64(2), triangles(gltf.PrimitiveTriangles, 6))
	assert.Equal(t, int64(0), triangles(gltf.PrimitiveTriangleStrip, 2))
	assert.Equal(t, int64(3), triangles(gltf.PrimitiveTriangleFan, 5))
	assert.Equal(t, int64(0), triangles(gltf.PrimitiveLines, 6))
}

func TestCountGeometry(t *testing.T) {
	indices := uint32(1)
	missing := uint32(7)
	doc := &gltf.Document{
		Accessors: []*gltf.Accessor{{Count: 4}, {Count: 6}},
		Meshes: []*gltf.Mesh{{Primitives: []*gltf.Primitive{
			{Attributes: gltf.Attribute{"POSITION": 0}, Indices: &indices, Mode: gltf.PrimitiveTriangles},
		}}},
	}

	report, err := countGeometry(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(4), report.VertexCount)
	assert.Equal(t, int64(2), report.TriangleCount)

	doc.Meshes[0].Primitives[0].Indices = &missing
	report, err = countGeometry(doc)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "indices accessor 7 does not exist")

	doc.Meshes[0].Primitives[0].Attributes = gltf.Attribute{"POSITION": 2}
	report, err = countGeometry(doc)
	require.NoError(t, err)
	assert.Contains(t, report.Errors[0], "POSITION accessor 2 does not exist")
}
