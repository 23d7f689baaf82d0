// Package fuse exposes the mediated volume as a FUSE filesystem.
//
// The adapter holds no policy of its own: every call is forwarded to the
// volume together with the kernel-reported uid of the calling process, and
// the volume's error taxonomy is mapped back onto POSIX errnos.
package fuse

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"sync/atomic"
	"syscall"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"

	"github.com/LightningFastRom/mediafs/internal/logger"
	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/vfs"
)

// Errors for server construction.
var (
	ErrInvalidMountpoint = errors.New("invalid mountpoint")
)

// Config holds the FUSE server configuration.
type Config struct {
	// Mountpoint is where the mediated view is exposed.
	Mountpoint string

	// AllowOther lets processes of other uids use the mount. Mediation is
	// pointless without it, but turning it on requires user_allow_other in
	// /etc/fuse.conf, so it stays configurable.
	AllowOther bool

	// Debug enables go-fuse protocol debugging.
	Debug bool
}

// Server mounts a Volume over FUSE.
type Server struct {
	volume  *vfs.Volume
	cfg     Config
	server  *gofuse.Server
	mounted atomic.Bool
}

// New creates a FUSE server for the given volume.
func New(volume *vfs.Volume, cfg Config) (*Server, error) {
	if cfg.Mountpoint == "" {
		return nil, ErrInvalidMountpoint
	}
	return &Server{volume: volume, cfg: cfg}, nil
}

// Mount mounts the filesystem and blocks until the context is cancelled,
// then unmounts.
func (s *Server) Mount(ctx context.Context) error {
	root := &mediaNode{srv: s, rel: ""}

	opts := &gofusefs.Options{
		MountOptions: gofuse.MountOptions{
			AllowOther: s.cfg.AllowOther,
			FsName:     "mediafs",
			Name:       "mediafs",
			Debug:      s.cfg.Debug,
		},
	}

	server, err := gofusefs.Mount(s.cfg.Mountpoint, root, opts)
	if err != nil {
		return err
	}
	s.server = server
	s.mounted.Store(true)
	logger.Info("mounted mediated volume at %s", s.cfg.Mountpoint)

	<-ctx.Done()

	if err := server.Unmount(); err != nil {
		return err
	}
	s.mounted.Store(false)
	return ctx.Err()
}

// IsMounted reports whether the filesystem is currently mounted.
func (s *Server) IsMounted() bool {
	return s.mounted.Load()
}

// callerToken extracts the calling process uid from the FUSE request.
func callerToken(ctx context.Context) identity.Token {
	if caller, ok := gofuse.FromContext(ctx); ok {
		return identity.Token(caller.Uid)
	}
	return identity.Token(0)
}

// mediaNode is one path of the mediated volume. A single node type serves
// files and directories; the volume decides what each caller may do at the
// path.
type mediaNode struct {
	gofusefs.Inode
	srv *Server
	rel string
}

var _ = (gofusefs.NodeLookuper)((*mediaNode)(nil))
var _ = (gofusefs.NodeGetattrer)((*mediaNode)(nil))
var _ = (gofusefs.NodeReaddirer)((*mediaNode)(nil))
var _ = (gofusefs.NodeMkdirer)((*mediaNode)(nil))
var _ = (gofusefs.NodeRmdirer)((*mediaNode)(nil))
var _ = (gofusefs.NodeUnlinker)((*mediaNode)(nil))
var _ = (gofusefs.NodeRenamer)((*mediaNode)(nil))
var _ = (gofusefs.NodeCreater)((*mediaNode)(nil))
var _ = (gofusefs.NodeOpener)((*mediaNode)(nil))

// childRel joins a child name onto this node's volume-relative path.
func (n *mediaNode) childRel(name string) string {
	if n.rel == "" {
		return name
	}
	return n.rel + "/" + name
}

// fillAttr copies stat results into a FUSE attr block.
func fillAttr(info iofs.FileInfo, out *gofuse.Attr) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		out.FromStat(st)
	}
}

// Getattr implements gofusefs.NodeGetattrer.
func (n *mediaNode) Getattr(ctx context.Context, fh gofusefs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	info, err := n.srv.volume.Stat(ctx, callerToken(ctx), n.rel)
	if err != nil {
		return vfs.ErrnoOf(err)
	}
	fillAttr(info, &out.Attr)
	return gofusefs.OK
}

// Lookup implements gofusefs.NodeLookuper.
func (n *mediaNode) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*gofusefs.Inode, syscall.Errno) {
	rel := n.childRel(name)
	info, err := n.srv.volume.Stat(ctx, callerToken(ctx), rel)
	if err != nil {
		return nil, vfs.ErrnoOf(err)
	}
	fillAttr(info, &out.Attr)

	mode := uint32(gofuse.S_IFREG)
	if info.IsDir() {
		mode = gofuse.S_IFDIR
	}
	child := &mediaNode{srv: n.srv, rel: rel}
	return n.NewInode(ctx, child, gofusefs.StableAttr{Mode: mode}), gofusefs.OK
}

// Readdir implements gofusefs.NodeReaddirer.
func (n *mediaNode) Readdir(ctx context.Context) (gofusefs.DirStream, syscall.Errno) {
	entries, err := n.srv.volume.ReadDir(ctx, callerToken(ctx), n.rel)
	if err != nil {
		return nil, vfs.ErrnoOf(err)
	}

	result := make([]gofuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(gofuse.S_IFREG)
		if e.IsDir {
			mode = gofuse.S_IFDIR
		}
		result = append(result, gofuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return gofusefs.NewListDirStream(result), gofusefs.OK
}

// Mkdir implements gofusefs.NodeMkdirer.
func (n *mediaNode) Mkdir(ctx context.Context, name string, mode uint32, out *gofuse.EntryOut) (*gofusefs.Inode, syscall.Errno) {
	rel := n.childRel(name)
	token := callerToken(ctx)
	if err := n.srv.volume.Mkdir(ctx, token, rel); err != nil {
		return nil, vfs.ErrnoOf(err)
	}

	info, err := n.srv.volume.Stat(ctx, token, rel)
	if err != nil {
		return nil, vfs.ErrnoOf(err)
	}
	fillAttr(info, &out.Attr)

	child := &mediaNode{srv: n.srv, rel: rel}
	return n.NewInode(ctx, child, gofusefs.StableAttr{Mode: gofuse.S_IFDIR}), gofusefs.OK
}

// Rmdir implements gofusefs.NodeRmdirer.
func (n *mediaNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if err := n.srv.volume.Rmdir(ctx, callerToken(ctx), n.childRel(name)); err != nil {
		return vfs.ErrnoOf(err)
	}
	return gofusefs.OK
}

// Unlink implements gofusefs.NodeUnlinker.
func (n *mediaNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if err := n.srv.volume.Unlink(ctx, callerToken(ctx), n.childRel(name)); err != nil {
		return vfs.ErrnoOf(err)
	}
	return gofusefs.OK
}

// Rename implements gofusefs.NodeRenamer.
func (n *mediaNode) Rename(ctx context.Context, name string, newParent gofusefs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	parent, ok := newParent.(*mediaNode)
	if !ok {
		return syscall.EINVAL
	}
	oldRel := n.childRel(name)
	newRel := parent.childRel(newName)
	if err := n.srv.volume.Rename(ctx, callerToken(ctx), oldRel, newRel); err != nil {
		return vfs.ErrnoOf(err)
	}
	return gofusefs.OK
}

// Create implements gofusefs.NodeCreater.
func (n *mediaNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *gofuse.EntryOut) (*gofusefs.Inode, gofusefs.FileHandle, uint32, syscall.Errno) {
	rel := n.childRel(name)
	token := callerToken(ctx)

	h, err := n.srv.volume.Open(ctx, token, rel, openFlags(flags)|syscall.O_CREAT)
	if err != nil {
		return nil, nil, 0, vfs.ErrnoOf(err)
	}

	info, err := n.srv.volume.Stat(ctx, token, rel)
	if err != nil {
		h.Close()
		return nil, nil, 0, vfs.ErrnoOf(err)
	}
	fillAttr(info, &out.Attr)

	child := &mediaNode{srv: n.srv, rel: rel}
	return n.NewInode(ctx, child, gofusefs.StableAttr{Mode: gofuse.S_IFREG}), &mediaHandle{h: h}, 0, gofusefs.OK
}

// Open implements gofusefs.NodeOpener.
func (n *mediaNode) Open(ctx context.Context, flags uint32) (gofusefs.FileHandle, uint32, syscall.Errno) {
	h, err := n.srv.volume.Open(ctx, callerToken(ctx), n.rel, openFlags(flags))
	if err != nil {
		return nil, 0, vfs.ErrnoOf(err)
	}
	fuseFlags := uint32(0)
	if h.Redacted() {
		// The redacted copy must not be served from the page cache, or a
		// later owner read could see zeroed ranges.
		fuseFlags = gofuse.FOPEN_DIRECT_IO
	}
	return &mediaHandle{h: h}, fuseFlags, gofusefs.OK
}

// openFlags translates kernel open flags for the volume. O_APPEND is
// dropped: the kernel already sends append writes with explicit offsets,
// and positional writes on an append-mode descriptor would fail.
func openFlags(flags uint32) int {
	return int(flags) &^ syscall.O_APPEND
}

// mediaHandle adapts a volume handle to the go-fuse file interfaces.
type mediaHandle struct {
	h *vfs.Handle
}

var _ = (gofusefs.FileReader)((*mediaHandle)(nil))
var _ = (gofusefs.FileWriter)((*mediaHandle)(nil))
var _ = (gofusefs.FileFlusher)((*mediaHandle)(nil))
var _ = (gofusefs.FileReleaser)((*mediaHandle)(nil))
var _ = (gofusefs.FileFsyncer)((*mediaHandle)(nil))

func (m *mediaHandle) Read(ctx context.Context, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	n, err := m.h.ReadAt(dest, off)
	if err != nil && err != io.EOF {
		return nil, vfs.ErrnoOf(err)
	}
	return gofuse.ReadResultData(dest[:n]), gofusefs.OK
}

func (m *mediaHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := m.h.WriteAt(data, off)
	if err != nil {
		return uint32(n), vfs.ErrnoOf(err)
	}
	return uint32(n), gofusefs.OK
}

func (m *mediaHandle) Flush(ctx context.Context) syscall.Errno {
	return gofusefs.OK
}

func (m *mediaHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	if err := m.h.Sync(); err != nil {
		return vfs.ErrnoOf(err)
	}
	return gofusefs.OK
}

func (m *mediaHandle) Release(ctx context.Context) syscall.Errno {
	if err := m.h.Close(); err != nil {
		return syscall.EIO
	}
	return gofusefs.OK
}
