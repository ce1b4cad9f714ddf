package neo4jstore

import (
	"sync"
)

// We are not fully acquainted with Neo4j isolation levels, and have observed
// that two concurrent transactions might share data. Therefore, we need to
// prevent any inventory modifications while we're reading it.
//
// Without this, the sweep between snapshots could observe inconsistent
// inventory states when concurrent writes modified containment relationships.
// Neo4j's isolation turned out not to be sufficient for our read consistency
// requirements during snapshot capture.
//
// To enforce this type of locking, we are introducing the inventoryWRMutex,
// an adaptation of sync.RWMutex to suit the specific locking requirements of
// the engine, in which multiple concurrent write transactions are
// permissible, but read operations must be exclusive. The zero value for an
// inventoryWRMutex is an unlocked mutex.
//
// The guarantees provided by sync.RWMutex regarding the Go memory model,
// especially the "synchronises before" relationship, apply here as well.
// Thus, the n'th call to WUnlock precedes the m'th call to Lock. Likewise,
// for each call to Lock, there exists a call to WUnlock that precedes it,
// ensuring proper synchronisation.
type inventoryWRMutex sync.RWMutex

// WLock locks wr for writing. It should not be used for recursive write
// locking; a blocked Lock call excludes new writers from acquiring the lock.
func (wr *inventoryWRMutex) WLock() {
	(*sync.RWMutex)(wr).RLock()
}

// WUnlock undoes a single WLock call; it does not affect other simultaneous
// writers. It is a run-time error if wr is not locked for writing on entry to
// WUnlock.
func (wr *inventoryWRMutex) WUnlock() {
	(*sync.RWMutex)(wr).RUnlock()
}

// Lock locks wr for reading. If the lock is already locked for writing or
// reading, Lock blocks until the lock is available.
func (wr *inventoryWRMutex) Lock() {
	(*sync.RWMutex)(wr).Lock()
}

// Unlock undoes a single Lock call. It is a run-time error if wr is not
// locked for reading on entry to Unlock.
func (wr *inventoryWRMutex) Unlock() {
	(*sync.RWMutex)(wr).Unlock()
}
