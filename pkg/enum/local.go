package enum

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/huntlab/filehound/pkg/types"
)

// ignoreFile lists patterns for paths the local driver should not descend
// into, one per root, gitignore syntax.
const ignoreFile = ".fhignore"

// LocalDriver walks one or more directory trees on the local filesystem.
type LocalDriver struct {
	Roots []string

	// SameFilesystem pins the walk to each root's device so mounted
	// shares and pseudo-filesystems are not crossed by accident.
	SameFilesystem bool

	// FollowSymlinks descends into symlinked directories. Cycles are
	// detected by the set of visited (device, inode) pairs.
	FollowSymlinks bool
}

// Host returns the loopback pseudo-host local collections are recorded
// under.
func (d *LocalDriver) Host() types.Host {
	return types.Host{Protocol: types.ProtocolLocal, Address: "127.0.0.1"}
}

func (d *LocalDriver) Enumerate(ctx context.Context, emit EmitFunc) error {
	for _, root := range d.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving root %s: %w", root, err)
		}
		w := &localWalker{
			driver:  d,
			host:    d.Host(),
			visited: make(map[inode]struct{}),
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("stat root %s: %w", abs, err)
		}
		if !info.IsDir() {
			ref := types.FileRef{
				Host:     d.Host(),
				FullPath: abs,
				Size:     info.Size(),
				Fetch: func(context.Context) ([]byte, error) {
					return os.ReadFile(abs)
				},
			}
			if err := emit(ref); err != nil {
				return err
			}
			continue
		}
		if d.SameFilesystem {
			w.rootDev = deviceOf(info)
		}
		if ign, err := gitignore.CompileIgnoreFile(filepath.Join(abs, ignoreFile)); err == nil {
			w.ignore = ign
			w.ignoreRoot = abs
		}
		if err := w.walk(ctx, abs, emit); err != nil {
			return err
		}
	}
	return nil
}

type inode struct {
	dev uint64
	ino uint64
}

type localWalker struct {
	driver     *LocalDriver
	host       types.Host
	visited    map[inode]struct{}
	rootDev    uint64
	ignore     *gitignore.GitIgnore
	ignoreRoot string
}

func (w *localWalker) walk(ctx context.Context, dir string, emit EmitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil // unreadable directory, skip
	}
	if key := inodeOf(info); key != (inode{}) {
		if _, seen := w.visited[key]; seen {
			return nil // symlink cycle
		}
		w.visited[key] = struct{}{}
	}

	if w.driver.SameFilesystem && deviceOf(info) != w.rootDev {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := filepath.Join(dir, entry.Name())
		if w.skipped(full) {
			continue
		}

		mode := entry.Type()
		var size int64
		if mode&fs.ModeSymlink != 0 {
			if !w.driver.FollowSymlinks {
				continue
			}
			target, err := os.Stat(full)
			if err != nil {
				continue // dangling link
			}
			if target.IsDir() {
				if err := w.walk(ctx, full, emit); err != nil {
					return err
				}
				continue
			}
			mode = target.Mode()
			size = target.Size()
		} else if fi, err := entry.Info(); err == nil {
			size = fi.Size()
		}

		switch {
		case entry.IsDir():
			if err := w.walk(ctx, full, emit); err != nil {
				return err
			}
		case mode.IsRegular():
			path := full
			ref := types.FileRef{
				Host:     w.host,
				FullPath: path,
				Size:     size,
				Fetch: func(context.Context) ([]byte, error) {
					return os.ReadFile(path)
				},
			}
			if err := emit(ref); err != nil {
				return err
			}
		default:
			// sockets, devices, fifos
		}
	}
	return nil
}

func (w *localWalker) skipped(path string) bool {
	if w.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.ignoreRoot, path)
	if err != nil {
		return false
	}
	return w.ignore.MatchesPath(rel)
}

func inodeOf(info os.FileInfo) inode {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return inode{dev: uint64(st.Dev), ino: st.Ino}
	}
	return inode{}
}

func deviceOf(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Dev)
	}
	return 0
}
