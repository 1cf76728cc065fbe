package loader

import (
	"fmt"
	"strings"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/classname"
)

// DefaultPlatformPrefixes are the packages supplied by the runtime itself.
// Only the javax packages owned by JDK modules are listed: javax.persistence,
// javax.annotation, javax.validation and the like ship in library jars.
var DefaultPlatformPrefixes = []string{
	"java.", "jdk.", "sun.",
	"javax.annotation.processing.",
	"javax.crypto.",
	"javax.imageio.",
	"javax.lang.model.",
	"javax.management.",
	"javax.naming.",
	"javax.net.",
	"javax.print.",
	"javax.script.",
	"javax.security.",
	"javax.sound.",
	"javax.sql.",
	"javax.swing.",
	"javax.tools.",
	"javax.transaction.xa.",
	"javax.xml.catalog.",
	"javax.xml.crypto.",
	"javax.xml.datatype.",
	"javax.xml.namespace.",
	"javax.xml.parsers.",
	"javax.xml.stream.",
	"javax.xml.transform.",
	"javax.xml.validation.",
	"javax.xml.xpath.",
}

// PlatformParent stands in for the runtime's own class loader. It knows
// platform classes by package prefix only, so it reports them without
// bytes and without a superclass: hierarchy walks end there.
type PlatformParent struct {
	prefixes []string
}

// NewPlatformParent creates a parent for the given prefixes. A nil slice
// selects DefaultPlatformPrefixes.
func NewPlatformParent(prefixes []string) *PlatformParent {
	if prefixes == nil {
		prefixes = DefaultPlatformPrefixes
	}
	return &PlatformParent{prefixes: prefixes}
}

// LoadClass implements Parent.
func (p *PlatformParent) LoadClass(name classname.Name) (*Class, error) {
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(string(name), prefix) {
			return &Class{
				Name:   name,
				Header: classfile.Header{Name: name},
				Source: SourceParent,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}
