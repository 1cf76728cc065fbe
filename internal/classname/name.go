// Package classname defines the canonical identity of a compiled class.
//
// A class can be named in dotted form (a.b.C) or in internal, slash-separated
// form (a/b/C). Every map in classweave keys on the dotted form returned by
// Parse; conversion happens wherever a name crosses a package boundary.
package classname

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ClassExt is the file extension of compiled classes.
const ClassExt = ".class"

// Name is a fully-qualified class name in canonical dotted form.
// The zero value is the empty name and is never a valid class.
type Name string

// Parse converts a dotted or slash-separated class name to its canonical form.
// A trailing ".class" extension is stripped. Names are NFC-normalised so that
// names read from a directory walk on filesystems that return decomposed
// Unicode compare equal to names from the compiler.
func Parse(s string) Name {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ClassExt)
	s = strings.TrimPrefix(s, "/")
	s = strings.ReplaceAll(s, "\\", "/")
	s = strings.ReplaceAll(s, "/", ".")
	return Name(norm.NFC.String(s))
}

// FromRelativePath derives a class name from a path relative to an output
// root, e.g. "com/x/Foo.class". Returns "" when the path is not a class file.
func FromRelativePath(rel string) Name {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if !strings.HasSuffix(rel, ClassExt) {
		return ""
	}
	return Parse(rel)
}

// String returns the dotted form.
func (n Name) String() string { return string(n) }

// Internal returns the slash-separated form used inside class files.
func (n Name) Internal() string {
	return strings.ReplaceAll(string(n), ".", "/")
}

// RelativePath returns the class file path relative to its output root,
// always using forward slashes.
func (n Name) RelativePath() string {
	return n.Internal() + ClassExt
}

// Package returns the dotted package name, or "" for the default package.
func (n Name) Package() string {
	i := strings.LastIndexByte(string(n), '.')
	if i < 0 {
		return ""
	}
	return string(n[:i])
}

// PackageDir returns the package as a slash-separated directory.
func (n Name) PackageDir() string {
	return strings.ReplaceAll(n.Package(), ".", "/")
}

// Short returns the simple name, including any nested-class suffix.
func (n Name) Short() string {
	i := strings.LastIndexByte(string(n), '.')
	return string(n[i+1:])
}

// Outer strips a nested-class suffix: a.b.Outer$Inner becomes a.b.Outer.
func (n Name) Outer() Name {
	short := n.Short()
	i := strings.IndexByte(short, '$')
	if i < 0 {
		return n
	}
	pkg := n.Package()
	if pkg == "" {
		return Name(short[:i])
	}
	return Name(pkg + "." + short[:i])
}

// IsNested reports whether the name refers to a nested or anonymous class.
func (n Name) IsNested() bool {
	return strings.ContainsRune(n.Short(), '$')
}

// InPackage reports whether the class lives in pkg or one of its
// subpackages. An empty prefix matches every class.
func (n Name) InPackage(prefix string) bool {
	prefix = strings.TrimSuffix(string(Parse(prefix)), ".")
	if prefix == "" {
		return true
	}
	s := string(n)
	return s == prefix || strings.HasPrefix(s, prefix+".")
}

// Join builds a class name from a slash-separated package directory and a
// short name.
func Join(pkgDir, short string) Name {
	if pkgDir == "" {
		return Parse(short)
	}
	return Parse(path.Join(pkgDir, short))
}
