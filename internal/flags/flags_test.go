package flags

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/askdata/askdata/internal/bus"
)

func newTestStore(t *testing.T) (*Store, *bus.Bus) {
	t.Helper()
	b := bus.New()
	s, err := Open(t.TempDir(), b, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, b
}

func TestCommitPersistsAndBroadcasts(t *testing.T) {
	s, b := newTestStore(t)

	var notified int
	b.Subscribe(Topic(string(DemoMode)), func() { notified++ })

	if err := s.Commit(DemoMode, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if !s.Bool(DemoMode) {
		t.Error("durable value not true after commit")
	}
	if notified != 1 {
		t.Errorf("got %d broadcasts, want 1", notified)
	}

	// A second store over the same file sees the committed value.
	other, err := Open(filepath.Dir(s.Path()), bus.New(), nil)
	if err != nil {
		t.Fatalf("Open second store: %v", err)
	}
	if !other.Bool(DemoMode) {
		t.Error("committed value not durable across stores")
	}
}

func TestSubscriberConvergesOnCommit(t *testing.T) {
	s, _ := newTestStore(t)

	// Subscriber caches locally and re-reads the durable value per
	// notification, per the synchronization contract.
	cached := s.Bool(SafeMode)
	unsub := s.OnChange(SafeMode, func(v bool) { cached = v })
	defer unsub()

	for _, want := range []bool{true, false, true} {
		if err := s.Commit(SafeMode, want); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if cached != want {
			t.Errorf("cached value %v diverged from durable %v", cached, want)
		}
		if s.Bool(SafeMode) != want {
			t.Errorf("durable value = %v, want %v", s.Bool(SafeMode), want)
		}
	}
}

func TestUnsetFlagIsFalse(t *testing.T) {
	s, _ := newTestStore(t)
	if s.Bool(PrivacyMode) {
		t.Error("unset flag should read false")
	}
	if s.String(KeyBackendURL) != "" {
		t.Error("unset key should read empty")
	}
}

func TestSetStringBackendURL(t *testing.T) {
	s, _ := newTestStore(t)

	var seen string
	unsub := s.OnKeyChange(KeyBackendURL, func(v string) { seen = v })
	defer unsub()

	if err := s.SetString(KeyBackendURL, "http://backend:9090"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if seen != "http://backend:9090" {
		t.Errorf("subscriber saw %q", seen)
	}
	if got := s.String(KeyBackendURL); got != "http://backend:9090" {
		t.Errorf("durable value %q", got)
	}
}

func TestExternalChangeRepublishedOnce(t *testing.T) {
	s, b := newTestStore(t)

	if err := s.Commit(DemoMode, false); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var notified int
	b.Subscribe(Topic(string(DemoMode)), func() { notified++ })

	// Simulate another process flipping the flag by rewriting the file.
	writeSettings(t, s.Path(), map[string]string{string(DemoMode): "true"})

	s.republishExternal()
	if notified != 1 {
		t.Fatalf("external change produced %d broadcasts, want 1", notified)
	}
	if !s.Bool(DemoMode) {
		t.Error("durable value should be true after external write")
	}

	// Same durable state again: no duplicate notification.
	s.republishExternal()
	if notified != 1 {
		t.Errorf("unchanged state produced %d broadcasts, want 1", notified)
	}
}

func TestOwnCommitNotDuplicatedByWatcherPath(t *testing.T) {
	s, b := newTestStore(t)

	var notified int
	b.Subscribe(Topic(string(AIAssist)), func() { notified++ })

	if err := s.Commit(AIAssist, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// The fsnotify event for our own write arrives later; the diff against
	// already-broadcast values must suppress it.
	s.republishExternal()

	if notified != 1 {
		t.Errorf("got %d broadcasts for one commit, want 1", notified)
	}
}

func TestCorruptFileReadsAsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if s.Bool(DemoMode) {
		t.Error("corrupt file should read as unset flags")
	}
}

func writeSettings(t *testing.T, path string, data map[string]string) {
	t.Helper()
	buf, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatal(err)
	}
}
