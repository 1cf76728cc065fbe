// Package classfile reads the header of a compiled class: its name, its
// superclass and the interfaces it implements. It walks the constant pool
// only as far as needed to resolve those names and never verifies or
// rewrites the class.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/classweave/internal/classname"
)

// Magic is the four-byte signature every class file starts with.
const Magic = 0xCAFEBABE

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// ErrNotClassFile is returned when the buffer does not start with Magic.
var ErrNotClassFile = errors.New("not a class file")

// Header describes a class as seen by supertype walks.
type Header struct {
	MajorVersion uint16
	MinorVersion uint16
	AccessFlags  uint16
	Name         classname.Name
	// SuperName is empty only for java.lang.Object and module-info.
	SuperName  classname.Name
	Interfaces []classname.Name
}

// IsInterface reports whether ACC_INTERFACE is set.
func (h Header) IsInterface() bool { return h.AccessFlags&0x0200 != 0 }

type reader struct {
	b   []byte
	off int
}

func (r *reader) u1() (uint8, error) {
	if r.off+1 > len(r.b) {
		return 0, r.truncated()
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if r.off+2 > len(r.b) {
		return 0, r.truncated()
	}
	v := binary.BigEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.off+4 > len(r.b) {
		return 0, r.truncated()
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) skip(n int) error {
	if r.off+n > len(r.b) {
		return r.truncated()
	}
	r.off += n
	return nil
}

func (r *reader) truncated() error {
	return fmt.Errorf("class file truncated at offset %d", r.off)
}

// ReadHeader parses the class header from b.
func ReadHeader(b []byte) (Header, error) {
	r := &reader{b: b}
	var h Header

	magic, err := r.u4()
	if err != nil {
		return h, err
	}
	if magic != Magic {
		return h, ErrNotClassFile
	}
	if h.MinorVersion, err = r.u2(); err != nil {
		return h, err
	}
	if h.MajorVersion, err = r.u2(); err != nil {
		return h, err
	}

	count, err := r.u2()
	if err != nil {
		return h, err
	}
	// Slot 0 is unused; long and double occupy two slots.
	utf8 := make(map[uint16]string)
	classes := make(map[uint16]uint16)
	for i := uint16(1); i < count; i++ {
		tag, err := r.u1()
		if err != nil {
			return h, err
		}
		switch tag {
		case tagUtf8:
			n, err := r.u2()
			if err != nil {
				return h, err
			}
			start := r.off
			if err := r.skip(int(n)); err != nil {
				return h, err
			}
			utf8[i] = string(b[start:r.off])
		case tagClass:
			idx, err := r.u2()
			if err != nil {
				return h, err
			}
			classes[i] = idx
		case tagString, tagMethodType, tagModule, tagPackage:
			err = r.skip(2)
		case tagMethodHandle:
			err = r.skip(3)
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			err = r.skip(4)
		case tagLong, tagDouble:
			err = r.skip(8)
			i++
		default:
			return h, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
		if err != nil {
			return h, err
		}
	}

	className := func(idx uint16) (classname.Name, error) {
		if idx == 0 {
			return "", nil
		}
		nameIdx, ok := classes[idx]
		if !ok {
			return "", fmt.Errorf("constant pool index %d is not a class", idx)
		}
		s, ok := utf8[nameIdx]
		if !ok {
			return "", fmt.Errorf("constant pool index %d is not a utf8 entry", nameIdx)
		}
		return classname.Parse(s), nil
	}

	if h.AccessFlags, err = r.u2(); err != nil {
		return h, err
	}
	thisIdx, err := r.u2()
	if err != nil {
		return h, err
	}
	if h.Name, err = className(thisIdx); err != nil {
		return h, fmt.Errorf("this_class: %w", err)
	}
	superIdx, err := r.u2()
	if err != nil {
		return h, err
	}
	if h.SuperName, err = className(superIdx); err != nil {
		return h, fmt.Errorf("super_class: %w", err)
	}

	n, err := r.u2()
	if err != nil {
		return h, err
	}
	for j := 0; j < int(n); j++ {
		idx, err := r.u2()
		if err != nil {
			return h, err
		}
		iface, err := className(idx)
		if err != nil {
			return h, fmt.Errorf("interface %d: %w", j, err)
		}
		h.Interfaces = append(h.Interfaces, iface)
	}

	return h, nil
}
