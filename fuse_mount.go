//go:build fuse

package sfs

import (
	"context"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// entryTimeout is how long the kernel is told to trust a name-to-inode
// lookup before re-checking. The namespace here only ever changes through
// this same process, so a generous timeout is safe.
const entryTimeout = time.Second

// fuseRoot is the filesystem's single directory node. SFS has no
// subdirectories (spec §1), so every child NewInode call below produces a
// regular-file node directly; there is no recursive node type.
type fuseRoot struct {
	fs.Inode
	vol *Volume
}

var _ = (fs.NodeLookuper)((*fuseRoot)(nil))
var _ = (fs.NodeReaddirer)((*fuseRoot)(nil))
var _ = (fs.NodeCreater)((*fuseRoot)(nil))
var _ = (fs.NodeUnlinker)((*fuseRoot)(nil))
var _ = (fs.NodeGetattrer)((*fuseRoot)(nil))

func (r *fuseRoot) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o755
	return 0
}

func (r *fuseRoot) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names := r.vol.ListNames()
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFREG,
		})
	}
	return fs.NewListDirStream(entries), 0
}

func (r *fuseRoot) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	size, err := r.vol.FileSize(name)
	if err != nil {
		return nil, syscall.ENOENT
	}

	out.Attr.Mode = syscall.S_IFREG | 0o644
	out.Attr.Size = uint64(size)
	out.SetEntryTimeout(entryTimeout)
	out.SetAttrTimeout(entryTimeout)

	child := r.NewInode(ctx, &fuseFile{vol: r.vol, name: name}, fs.StableAttr{Mode: syscall.S_IFREG})
	return child, 0
}

// Create makes a new, empty file and immediately opens it, matching the
// combined create-then-open semantics FUSE expects from O_CREAT opens.
func (r *fuseRoot) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	fd, err := r.vol.OpenFile(name)
	if err != nil {
		return nil, nil, 0, errnoFor(err)
	}

	out.Attr.Mode = syscall.S_IFREG | 0o644
	out.SetEntryTimeout(entryTimeout)
	out.SetAttrTimeout(entryTimeout)

	node := &fuseFile{vol: r.vol, name: name}
	child := r.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFREG})
	handle := &fuseHandle{vol: r.vol, name: name, fd: fd}
	return child, handle, 0, 0
}

func (r *fuseRoot) Unlink(ctx context.Context, name string) syscall.Errno {
	if err := r.vol.Remove(name); err != nil {
		return errnoFor(err)
	}
	return 0
}

// fuseFile is a leaf node standing in for one SFS file. It carries no
// handle state of its own; every open gets its own fuseHandle, the same
// way the volume's own open file table hands out a fresh cursor pair per
// handle rather than per name.
type fuseFile struct {
	fs.Inode
	vol  *Volume
	name string
}

var _ = (fs.NodeOpener)((*fuseFile)(nil))
var _ = (fs.NodeGetattrer)((*fuseFile)(nil))
var _ = (fs.NodeSetattrer)((*fuseFile)(nil))

func (f *fuseFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	size, err := f.vol.FileSize(f.name)
	if err != nil {
		return errnoFor(err)
	}
	out.Attr.Mode = syscall.S_IFREG | 0o644
	out.Attr.Size = uint64(size)
	return 0
}

// Setattr accepts every request without effect rather than rejecting it:
// chmod/chown have nowhere to persist on this filesystem, and size changes
// (truncation) are ignored as well. It reports the file's current size.
func (f *fuseFile) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	size, err := f.vol.FileSize(f.name)
	if err != nil {
		return errnoFor(err)
	}
	out.Attr.Mode = syscall.S_IFREG | 0o644
	out.Attr.Size = uint64(size)
	return 0
}

func (f *fuseFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fd, err := f.vol.OpenFile(f.name)
	if err != nil {
		return nil, 0, errnoFor(err)
	}
	return &fuseHandle{vol: f.vol, name: f.name, fd: fd}, 0, 0
}

// fuseHandle bridges one FUSE open to one SFS open-file-table handle. A
// mutex serializes calls through it because *Volume itself isn't
// safe for concurrent use (spec §5), and go-fuse dispatches requests from
// a worker pool.
type fuseHandle struct {
	mu   sync.Mutex
	vol  *Volume
	name string
	fd   int
}

var _ = (fs.FileReader)((*fuseHandle)(nil))
var _ = (fs.FileWriter)((*fuseHandle)(nil))
var _ = (fs.FileFlusher)((*fuseHandle)(nil))
var _ = (fs.FileReleaser)((*fuseHandle)(nil))

// Read is bounded against the file's real size: Volume.Read zero-fills
// past it all the way out to MaxFileBytes (spec §4.6/§9), which would
// otherwise hand the kernel pages of trailing zeroes past EOF instead of
// a short read.
func (h *fuseHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size, err := h.vol.FileSize(h.name)
	if err != nil {
		return nil, errnoFor(err)
	}
	if off >= int64(size) {
		return fuse.ReadResultData(nil), 0
	}
	if remaining := int64(size) - off; int64(len(dest)) > remaining {
		dest = dest[:remaining]
	}

	if err := h.vol.SeekRead(h.fd, uint32(off)); err != nil {
		return nil, errnoFor(err)
	}
	n, err := h.vol.Read(h.fd, dest)
	if err != nil {
		return nil, errnoFor(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fuseHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.vol.SeekWrite(h.fd, uint32(off)); err != nil {
		return 0, errnoFor(err)
	}
	n, err := h.vol.Write(h.fd, data)
	if err != nil {
		return uint32(n), errnoFor(err)
	}
	return uint32(n), 0
}

func (h *fuseHandle) Flush(ctx context.Context) syscall.Errno {
	return 0
}

func (h *fuseHandle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.vol.CloseFile(h.fd); err != nil {
		return errnoFor(err)
	}
	return 0
}

// errnoFor maps the package's sentinel errors onto the syscall errno FUSE
// expects back; anything unrecognized becomes EIO.
func errnoFor(err error) syscall.Errno {
	switch err {
	case ErrNotFound:
		return syscall.ENOENT
	case ErrAlreadyOpen:
		return syscall.EBUSY
	case ErrNameTooLong:
		return syscall.ENAMETOOLONG
	case ErrNoFreeInode, ErrNoFreeDirSlot, ErrNoFreeHandle, ErrNoSpace:
		return syscall.ENOSPC
	case ErrBadHandle:
		return syscall.EBADF
	default:
		return syscall.EIO
	}
}

// MountFUSE mounts vol's flat namespace at mountpoint and blocks serving
// requests until the filesystem is unmounted. Callers that want to unmount
// programmatically should use fs.Mount directly instead and keep the
// returned server.
func MountFUSE(vol *Volume, mountpoint string) error {
	root := &fuseRoot{vol: vol}
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName: "sfs",
			Name:   "sfs",
		},
	})
	if err != nil {
		return err
	}
	server.Wait()
	return nil
}
