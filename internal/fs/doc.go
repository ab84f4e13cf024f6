// Package fs provides the filesystem abstraction used by the durability log.
//
// [LocalFS] is the real thing; [FaultyFS] wraps any [FileSystem] and
// injects write, sync, truncate and close failures for tests.
//
// Production code uses fs.Default:
//
//	f, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
//
// Tests inject a [FaultyFS] and flip faults on and off at runtime:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("wal.log", fs.Fault{FailOnSync: true})
//	// ... later
//	ffs.ClearRules()
//
// Operations take no context.Context. Local file operations are not
// interruptible at the syscall level.
package fs
