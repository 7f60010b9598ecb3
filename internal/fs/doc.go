// Package fs is the file system seam of the blob store.
//
// Store code never calls package os directly. It goes through [FileSystem],
// so tests can swap in [FaultyFS] and make a chosen write, sync or rename
// fail, or report a nearly full volume. [LocalFS] (exported as Default)
// forwards to package os and reads free space with statfs on unix.
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".original", fs.Fault{FailOnRename: true})
//	store, _ := blobstore.New(cfg, c, blobstore.WithFS(ffs))
//
// CopyFile and WriteFile sync before closing; a copy that returns nil is
// on disk.
package fs
