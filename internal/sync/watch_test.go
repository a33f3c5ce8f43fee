package sync

import (
	"errors"
	"testing"

	"github.com/example/viacar/internal/logging"
	"github.com/example/viacar/internal/models"
)

type fakeConn struct {
	frames []Revision
	fail   bool
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.fail {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, v.(Revision))
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestDraftChangedFansOutToOwnersWatchers(t *testing.T) {
	r := NewRegistry(logging.Nop())
	a := &fakeConn{}
	b := &fakeConn{}
	other := &fakeConn{}
	r.Watch("dev-1", a)
	r.Watch("dev-1", b)
	r.Watch("dev-2", other)

	notes := "hello"
	r.DraftChanged("dev-1", 4, models.RideDraft{Notes: &notes})

	for _, c := range []*fakeConn{a, b} {
		if len(c.frames) != 1 {
			t.Fatalf("expected 1 frame, got %d", len(c.frames))
		}
		fr := c.frames[0]
		if fr.Owner != "dev-1" || fr.Rev != 4 || fr.Draft.Notes == nil || *fr.Draft.Notes != "hello" {
			t.Fatalf("unexpected frame: %+v", fr)
		}
	}
	if len(other.frames) != 0 {
		t.Fatalf("other owner's watcher received a frame: %+v", other.frames)
	}
}

func TestDraftChangedDropsDeadConnections(t *testing.T) {
	r := NewRegistry(logging.Nop())
	healthy := &fakeConn{}
	dead := &fakeConn{fail: true}
	r.Watch("dev-1", healthy)
	r.Watch("dev-1", dead)
	if n := r.WatcherCount("dev-1"); n != 2 {
		t.Fatalf("expected 2 watchers, got %d", n)
	}

	r.DraftChanged("dev-1", 1, models.RideDraft{})

	if !dead.closed {
		t.Fatal("failed connection was not closed")
	}
	if n := r.WatcherCount("dev-1"); n != 1 {
		t.Fatalf("expected 1 watcher after drop, got %d", n)
	}

	// the survivor keeps receiving
	r.DraftChanged("dev-1", 2, models.RideDraft{})
	if len(healthy.frames) != 2 {
		t.Fatalf("expected 2 frames on the healthy conn, got %d", len(healthy.frames))
	}
}
