package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/loader"
)

// Func adapts a function to a Transformer.
type Func struct {
	PassName string
	Fn       func(l loader.ClassLoader, name classname.Name, b []byte) ([]byte, error)
}

func (f Func) Name() string { return f.PassName }

func (f Func) Transform(l loader.ClassLoader, name classname.Name, b []byte) ([]byte, error) {
	return f.Fn(l, name, b)
}

// Marker appends a fixed trailer to a class and skips classes that already
// end with it. The trailer lies outside the class structure, so readers of
// the class header are not affected.
type Marker struct {
	PassName string
	Trailer  []byte
}

// NewMarker creates a marker pass.
func NewMarker(name string, trailer []byte) (*Marker, error) {
	if len(trailer) == 0 {
		return nil, fmt.Errorf("marker pass %s: empty trailer", name)
	}
	return &Marker{PassName: name, Trailer: trailer}, nil
}

func (m *Marker) Name() string { return m.PassName }

func (m *Marker) Transform(_ loader.ClassLoader, _ classname.Name, b []byte) ([]byte, error) {
	if bytes.HasSuffix(b, m.Trailer) {
		return nil, nil
	}
	out := make([]byte, 0, len(b)+len(m.Trailer))
	out = append(out, b...)
	return append(out, m.Trailer...), nil
}

// ClassEnv is the environment variable naming the class handed to a
// Command pass, in internal (slash-separated) form.
const ClassEnv = "CLASSWEAVE_CLASS"

// Command runs an external enhancer once per class. The class bytes are
// written to its stdin; non-empty stdout is the rewritten class and empty
// stdout means unchanged. A non-zero exit fails the class.
type Command struct {
	PassName string
	Argv     []string
	Dir      string
	Env      []string
}

func (c *Command) Name() string { return c.PassName }

func (c *Command) Transform(_ loader.ClassLoader, name classname.Name, b []byte) ([]byte, error) {
	if len(c.Argv) == 0 {
		return nil, fmt.Errorf("command pass %s has no command", c.PassName)
	}
	cmd := exec.CommandContext(context.Background(), c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = append(append(os.Environ(), c.Env...), ClassEnv+"="+name.Internal())
	cmd.Stdin = bytes.NewReader(b)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", c.Argv[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", c.Argv[0], err)
	}
	if stdout.Len() == 0 {
		return nil, nil
	}
	return stdout.Bytes(), nil
}

// Gated applies Inner only to classes that extend or implement one of
// Types. Such classes are always considered, whatever the manifest says.
type Gated struct {
	Inner Transformer
	Types []classname.Name
}

func (g *Gated) Name() string { return g.Inner.Name() }

func (g *Gated) Transform(l loader.ClassLoader, name classname.Name, b []byte) ([]byte, error) {
	ok, err := loader.IsSubtypeOf(l, name, g.Types...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return g.Inner.Transform(l, name, b)
}

func (g *Gated) AlwaysConsider(l loader.ClassLoader, name classname.Name) bool {
	ok, err := loader.IsSubtypeOf(l, name, g.Types...)
	return err == nil && ok
}
