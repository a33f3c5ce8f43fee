// Package sync pushes draft revisions to every connected watcher of an
// owner. Two devices editing the same draft each hold their own in-memory
// copy; without this channel the second device only re-reads storage on its
// own initialization and silently clobbers the first on its next save.
package sync

import (
	"log/slog"
	gosync "sync"

	"github.com/example/viacar/internal/models"
)

// Revision is the wire frame written to watchers after every persist.
type Revision struct {
	Owner string           `json:"owner"`
	Rev   uint64           `json:"rev"`
	Draft models.RideDraft `json:"draft"`
}

// Conn is what the registry needs from a watch connection. Satisfied by
// *websocket.Conn.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type watcherConn struct {
	conn Conn
	mu   gosync.Mutex
}

func (w *watcherConn) send(rev Revision) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(rev)
}

// Registry holds the open watch connections grouped by owner.
type Registry struct {
	mu       gosync.RWMutex
	logger   *slog.Logger
	watchers map[string][]*watcherConn
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger, watchers: make(map[string][]*watcherConn)}
}

// Watch registers a connection for an owner's revisions. The registry owns
// the connection from here on and closes it when a write fails.
func (r *Registry) Watch(owner string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers[owner] = append(r.watchers[owner], &watcherConn{conn: conn})
}

// DraftChanged fans the new revision out to the owner's watchers, dropping
// connections that fail. Implements draft.Watcher.
func (r *Registry) DraftChanged(owner string, rev uint64, d models.RideDraft) {
	r.mu.RLock()
	conns := r.watchers[owner]
	r.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	frame := Revision{Owner: owner, Rev: rev, Draft: d}
	var dead []*watcherConn
	for _, wc := range conns {
		if err := wc.send(frame); err != nil {
			r.logger.Warn("watch send failed, dropping", "owner", owner, "error", err)
			dead = append(dead, wc)
		}
	}
	if len(dead) == 0 {
		return
	}

	r.mu.Lock()
	kept := r.watchers[owner][:0]
	for _, wc := range r.watchers[owner] {
		failed := false
		for _, d := range dead {
			if wc == d {
				failed = true
				break
			}
		}
		if failed {
			_ = wc.conn.Close()
			continue
		}
		kept = append(kept, wc)
	}
	if len(kept) == 0 {
		delete(r.watchers, owner)
	} else {
		r.watchers[owner] = kept
	}
	r.mu.Unlock()
}

// WatcherCount reports how many connections an owner has.
func (r *Registry) WatcherCount(owner string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.watchers[owner])
}
