package store

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// NewLocalFilesystem returns a billy.Filesystem rooted at dir on the real
// disk, for production datasets. Grounded on the teacher's use of
// osfs.New to back go-git worktrees with the real filesystem while
// keeping the rest of its code filesystem-agnostic.
func NewLocalFilesystem(dir string) billy.Filesystem {
	return osfs.New(dir)
}

// NewMemFilesystem returns an in-memory billy.Filesystem, used by tests
// and by short-lived scratch datasets that never need to survive the
// process.
func NewMemFilesystem() billy.Filesystem {
	return memfs.New()
}

func nextShardPath(prefix string, index int) string {
	return fmt.Sprintf("%s-%05d.json", prefix, index)
}
