package artifact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/testutil"
)

func TestNew_RecordsExistingClass(t *testing.T) {
	root := t.TempDir()
	path := testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.Foo"})

	a, err := New(root, "com/x/Foo.class")
	require.NoError(t, err)
	assert.Equal(t, classname.Name("com.x.Foo"), a.Name)
	assert.Equal(t, path, a.File)
	assert.Equal(t, root, a.OutputRoot)
}

func TestNew_RejectsMissingAndNonClass(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "META-INF/ebean.mf", []byte("packages: com.x"))

	_, err := New(root, "com/x/Missing.class")
	assert.Error(t, err)

	_, err = New(root, "META-INF/ebean.mf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a class file")
}

func TestFromFile(t *testing.T) {
	root := t.TempDir()
	path := testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.Foo"})

	a, err := FromFile(root, path)
	require.NoError(t, err)
	assert.Equal(t, classname.Name("com.x.Foo"), a.Name)

	_, err = FromFile(root, filepath.Join(t.TempDir(), "Other.class"))
	assert.Error(t, err)
}

func TestWorkingSet_FirstWinsAndKeepsOrder(t *testing.T) {
	ws := NewWorkingSet()
	assert.True(t, ws.Add(CompiledArtifact{Name: "b.B", File: "/1"}))
	assert.True(t, ws.Add(CompiledArtifact{Name: "a.A", File: "/2"}))
	assert.False(t, ws.Add(CompiledArtifact{Name: "b.B", File: "/3"}))

	require.Equal(t, 2, ws.Len())
	arts := ws.Artifacts()
	assert.Equal(t, classname.Name("b.B"), arts[0].Name)
	assert.Equal(t, "/1", arts[0].File)
	assert.Equal(t, map[classname.Name]string{"b.B": "/1", "a.A": "/2"}, ws.Files())

	only := ws.Filter(func(a CompiledArtifact) bool { return a.Name == "a.A" })
	assert.Equal(t, 1, only.Len())
}
