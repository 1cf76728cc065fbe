package enhance

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// TempMarker appears in the name of every temporary file a commit creates.
// Temporary files are hidden and live next to the class they replace.
const TempMarker = ".classweave-"

// IsTempFile reports whether path is a commit's temporary file.
func IsTempFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && strings.Contains(base, TempMarker)
}

// writeFileAtomic replaces the content of an existing file. The new bytes
// go to a temporary file in the same directory which is then renamed over
// the original, so a reader sees either the old or the new content.
func writeFileAtomic(path string, b []byte) (err error) {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+base+TempMarker+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Digest returns the hex BLAKE3-256 digest of b.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}
