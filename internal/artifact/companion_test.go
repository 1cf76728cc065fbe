package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/testutil"
)

func TestTemplate_Apply(t *testing.T) {
	rel, ok := Template("{pkg}/query/Q{short}").Apply("com.x.Foo")
	require.True(t, ok)
	assert.Equal(t, "com/x/query/QFoo.class", rel)

	_, ok = Template("{pkg}/query/Q{short}").Apply("Foo")
	assert.False(t, ok, "default package has no companions")
}

func TestNewExpander_RejectsTemplateWithoutShortName(t *testing.T) {
	_, err := NewExpander([]Template{"{pkg}/query/Fixed"})
	assert.Error(t, err)
}

func TestExpand_IncludesOnlyExistingCompanionsInTemplateOrder(t *testing.T) {
	root := t.TempDir()
	testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.Foo"})
	testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.query.assoc.QAssocFoo"})
	testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.query.QFoo"})

	a, err := New(root, "com/x/Foo.class")
	require.NoError(t, err)

	e, err := NewExpander(nil)
	require.NoError(t, err)
	got := e.Expand(a)

	require.Len(t, got, 3)
	assert.Equal(t, classname.Name("com.x.Foo"), got[0].Name)
	assert.Equal(t, classname.Name("com.x.query.QFoo"), got[1].Name)
	assert.Equal(t, classname.Name("com.x.query.assoc.QAssocFoo"), got[2].Name)
	assert.Equal(t, root, got[1].OutputRoot)
}

func TestExpand_NoCompanions(t *testing.T) {
	root := t.TempDir()
	testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.Foo"})
	a, err := New(root, "com/x/Foo.class")
	require.NoError(t, err)

	e, _ := NewExpander(nil)
	assert.Equal(t, []CompiledArtifact{a}, e.Expand(a))
}

func TestExpand_Deterministic(t *testing.T) {
	root := t.TempDir()
	testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.Foo"})
	testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.query.QFoo"})
	a, err := New(root, "com/x/Foo.class")
	require.NoError(t, err)

	e, _ := NewExpander(nil)
	assert.Equal(t, e.Expand(a), e.Expand(a))
}

func TestExpandAll_DeduplicatesCompanionReachedDirectly(t *testing.T) {
	root := t.TempDir()
	testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.Foo"})
	testutil.WriteClass(t, root, testutil.ClassFile{Name: "com.x.query.QFoo"})

	foo, err := New(root, "com/x/Foo.class")
	require.NoError(t, err)
	qfoo, err := New(root, "com/x/query/QFoo.class")
	require.NoError(t, err)

	e, _ := NewExpander(nil)
	ws := e.ExpandAll([]CompiledArtifact{qfoo, foo})
	assert.Equal(t, 2, ws.Len())
	assert.Equal(t, classname.Name("com.x.query.QFoo"), ws.Artifacts()[0].Name)
}
