package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/classname"
)

func TestParse_PackagesKey(t *testing.T) {
	m, err := Parse("ebean.mf", strings.NewReader("packages: com.x, com.y.domain  com.z\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"com.x", "com.y.domain", "com.z"}, m.Packages())
	assert.True(t, m.Restricted())
}

func TestParse_SuffixKeysAndContinuation(t *testing.T) {
	src := "Manifest-Version: 1.0\n" +
		"entity-packages: com.x.domain,\n" +
		" com.x.other\n" +
		"querybean-packages: com.x.query\n" +
		"transactional-packages: none\n" +
		"# comment\n\n"
	m, err := Parse("mf", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"com.x.domain", "com.x.other", "com.x.query"}, m.Packages())
	assert.Equal(t, []string{"1.0"}, m.Values("manifest-version"))
}

func TestParse_MalformedLine(t *testing.T) {
	_, err := Parse("bad.mf", strings.NewReader("packages: com.x\nthis is not a manifest\n"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
	assert.Contains(t, err.Error(), "bad.mf:2")
}

func TestParse_ContinuationWithoutEntry(t *testing.T) {
	_, err := Parse("bad.mf", strings.NewReader(" com.x\n"))
	assert.Error(t, err)
}

func TestAllows(t *testing.T) {
	m, err := Parse("mf", strings.NewReader("packages: com.x"))
	require.NoError(t, err)

	assert.True(t, m.Allows(classname.Parse("com.x.Foo")))
	assert.True(t, m.Allows(classname.Parse("com.x.query.QFoo")))
	assert.False(t, m.Allows(classname.Parse("com.y.Bar")))
	assert.False(t, m.Allows(classname.Parse("com.xy.Bar")))
}

func TestAllows_NoManifestMeansNoRestriction(t *testing.T) {
	m := New()
	assert.False(t, m.Restricted())
	assert.True(t, m.Allows(classname.Parse("any.Thing")))
}

func TestAllows_NoneRestrictsEverything(t *testing.T) {
	m, err := Parse("mf", strings.NewReader("packages: none"))
	require.NoError(t, err)
	assert.Empty(t, m.Packages())
	assert.False(t, m.Allows(classname.Parse("com.x.Foo")))
}

func TestMerge_UnitesPackages(t *testing.T) {
	a, err := Parse("a", strings.NewReader("packages: com.x"))
	require.NoError(t, err)
	b, err := Parse("b", strings.NewReader("packages: com.y, com.x"))
	require.NoError(t, err)

	a.Merge(b)
	a.Merge(nil)
	assert.Equal(t, []string{"com.x", "com.y"}, a.Packages())
	assert.Equal(t, []string{"a", "b"}, a.Sources())
}

func TestSplitPackages_Wildcards(t *testing.T) {
	assert.Equal(t, []string{"com.x", "com.y"}, splitPackages("com.x.*; com/y/"))
}
