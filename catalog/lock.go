package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/semaphore"
	"mit.edu/dsg/godbopt/common"
)

// LockOwner identifies the holder of a write lock, typically a session. The
// write lock is reentrant per owner. NoOwner is never a valid owner.
type LockOwner uint64

const NoOwner LockOwner = 0

// maxReaders bounds the number of concurrent readers. A writer acquires all of
// it.
const maxReaders = 1 << 30

// rwLock is a fair reader/writer lock. Waiters are served in arrival order: a
// waiting writer blocks readers that arrive after it, so writers cannot
// starve.
type rwLock struct {
	sem *semaphore.Weighted

	// mu protects owner and depth.
	mu    sync.Mutex
	owner LockOwner
	depth int
}

func newRWLock() *rwLock {
	return &rwLock{sem: semaphore.NewWeighted(maxReaders)}
}

func (l *rwLock) readLock(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *rwLock) readUnlock() {
	l.sem.Release(1)
}

// reenter bumps the hold count if owner already holds the write lock.
func (l *rwLock) reenter(owner LockOwner) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != owner {
		return false
	}
	l.depth++
	return true
}

func (l *rwLock) granted(owner LockOwner) {
	l.mu.Lock()
	defer l.mu.Unlock()
	common.Assert(l.owner == NoOwner, "write lock granted while held")
	l.owner = owner
	l.depth = 1
}

func (l *rwLock) writeLock(ctx context.Context, owner LockOwner) error {
	common.Assert(owner != NoOwner, "write lock requested without an owner")
	if l.reenter(owner) {
		return nil
	}
	if err := l.sem.Acquire(ctx, maxReaders); err != nil {
		return err
	}
	l.granted(owner)
	return nil
}

func (l *rwLock) tryWriteLock(owner LockOwner, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.writeLock(ctx, owner) == nil
}

func (l *rwLock) writeUnlock(owner LockOwner) {
	l.mu.Lock()
	common.Assert(l.owner == owner && l.depth > 0, "write lock released by a non-owner")
	l.depth--
	release := l.depth == 0
	if release {
		l.owner = NoOwner
	}
	l.mu.Unlock()
	if release {
		l.sem.Release(maxReaders)
	}
}

func (l *rwLock) isWriteLockHeldBy(owner LockOwner) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return owner != NoOwner && l.owner == owner
}

// dbLocks implements the lock surface of Database on top of rwLock.
type dbLocks struct {
	name    string
	lock    *rwLock
	timeout time.Duration
}

// ReadLock blocks until the database can be read or ctx is done. Readers must
// not hold the write lock.
func (d *dbLocks) ReadLock(ctx context.Context) error {
	return d.lock.readLock(ctx)
}

func (d *dbLocks) ReadUnlock() {
	d.lock.readUnlock()
}

// WriteLock blocks until owner holds the write lock or ctx is done.
func (d *dbLocks) WriteLock(ctx context.Context, owner LockOwner) error {
	return d.lock.writeLock(ctx, owner)
}

// TryWriteLock waits at most timeout for the write lock and reports whether it
// was acquired.
func (d *dbLocks) TryWriteLock(owner LockOwner, timeout time.Duration) bool {
	if d.lock.tryWriteLock(owner, timeout) {
		return true
	}
	glog.Warningf("failed to acquire write lock on database %s for owner %d within %s", d.name, owner, timeout)
	return false
}

// WriteLockOrError acquires the write lock within the configured timeout, or
// returns LockTimeoutError.
func (d *dbLocks) WriteLockOrError(owner LockOwner) error {
	if !d.TryWriteLock(owner, d.timeout) {
		return common.NewError(common.LockTimeoutError,
			"timed out after %s waiting for the write lock on database %s", d.timeout, d.name)
	}
	return nil
}

func (d *dbLocks) WriteUnlock(owner LockOwner) {
	d.lock.writeUnlock(owner)
}

func (d *dbLocks) IsWriteLockHeldBy(owner LockOwner) bool {
	return d.lock.isWriteLockHeldBy(owner)
}
