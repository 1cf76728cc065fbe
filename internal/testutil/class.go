package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/classweave/internal/classname"
)

// ClassFile builds a minimal, structurally valid class file.
//
// The constant pool holds only the utf8 and class entries needed for
// this_class, super_class and the interfaces. There are no fields, methods
// or attributes.
type ClassFile struct {
	Name       string
	Super      string // empty means java/lang/Object
	Interfaces []string
	Interface  bool
}

// Bytes encodes the class file.
func (c ClassFile) Bytes() []byte {
	var pool bytes.Buffer
	next := uint16(1)
	addClass := func(name string) uint16 {
		internal := classname.Parse(name).Internal()
		pool.WriteByte(1) // utf8
		_ = binary.Write(&pool, binary.BigEndian, uint16(len(internal)))
		pool.WriteString(internal)
		utf := next
		next++
		pool.WriteByte(7) // class
		_ = binary.Write(&pool, binary.BigEndian, utf)
		idx := next
		next++
		return idx
	}

	this := addClass(c.Name)
	superName := c.Super
	if superName == "" {
		superName = "java.lang.Object"
	}
	super := addClass(superName)
	ifaces := make([]uint16, 0, len(c.Interfaces))
	for _, i := range c.Interfaces {
		ifaces = append(ifaces, addClass(i))
	}

	var out bytes.Buffer
	w := func(v any) { _ = binary.Write(&out, binary.BigEndian, v) }
	w(uint32(0xCAFEBABE))
	w(uint16(0))  // minor
	w(uint16(52)) // major, Java 8
	w(next)       // constant_pool_count
	out.Write(pool.Bytes())
	access := uint16(0x0021) // public super
	if c.Interface {
		access = 0x0601 // public interface abstract
	}
	w(access)
	w(this)
	w(super)
	w(uint16(len(ifaces)))
	for _, i := range ifaces {
		w(i)
	}
	w(uint16(0)) // fields
	w(uint16(0)) // methods
	w(uint16(0)) // attributes
	return out.Bytes()
}

// WriteClass writes a class file for name under root and returns its path.
func WriteClass(t *testing.T, root string, c ClassFile) string {
	t.Helper()
	return WriteFile(t, root, classname.Parse(c.Name).RelativePath(), c.Bytes())
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}
