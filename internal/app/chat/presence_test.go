package chat

import "testing"

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	if _, ok := r.Lookup("u1"); ok {
		t.Fatal("expected empty registry to miss lookup")
	}

	r.Register(Entry{UserID: "u1", Username: "alice", Conn: conn})

	got, ok := r.Lookup("u1")
	if !ok {
		t.Fatal("expected lookup hit after register")
	}
	if got != conn {
		t.Error("lookup returned a different connection")
	}
}

func TestRegistryLastConnectWins(t *testing.T) {
	r := NewRegistry()
	first := &fakeConn{}
	second := &fakeConn{}

	if superseded := r.Register(Entry{UserID: "u1", Username: "alice", Conn: first}); superseded != nil {
		t.Fatal("first register must not supersede anything")
	}

	superseded := r.Register(Entry{UserID: "u1", Username: "alice", Conn: second})
	if superseded != first {
		t.Fatal("second register must return the first connection as superseded")
	}

	online := r.Online()
	if len(online) != 1 {
		t.Fatalf("expected exactly one entry for u1, got %d", len(online))
	}

	got, _ := r.Lookup("u1")
	if got != second {
		t.Error("lookup must return the newest connection")
	}

	// The superseded connection no longer owns a presence entry, so its
	// disconnect must not remove the newer entry.
	if r.Unregister(first) {
		t.Error("unregister of superseded connection must be a no-op")
	}
	if _, ok := r.Lookup("u1"); !ok {
		t.Error("newest connection lost its entry")
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Register(Entry{UserID: "u1", Username: "alice", Conn: conn})

	if !r.Unregister(conn) {
		t.Fatal("expected unregister to remove the entry")
	}
	if _, ok := r.Lookup("u1"); ok {
		t.Error("entry survived unregister")
	}

	// A connection that never identified removes nothing.
	if r.Unregister(&fakeConn{}) {
		t.Error("unregister of unknown connection must report false")
	}
}

func TestRegistryOnlineDeterministicOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(Entry{UserID: "u3", Username: "carol", Conn: &fakeConn{}})
	r.Register(Entry{UserID: "u1", Username: "alice", IsAdmin: true, Conn: &fakeConn{}})
	r.Register(Entry{UserID: "u2", Username: "bob", Conn: &fakeConn{}})

	want := []string{"alice", "bob", "carol"}
	for i := 0; i < 5; i++ {
		online := r.Online()
		if len(online) != len(want) {
			t.Fatalf("expected %d online users, got %d", len(want), len(online))
		}
		for j, u := range online {
			if u.Username != want[j] {
				t.Fatalf("snapshot %d: position %d is %q, want %q", i, j, u.Username, want[j])
			}
		}
	}
}

func TestRegistryAdmins(t *testing.T) {
	r := NewRegistry()
	adminConn := &fakeConn{}
	r.Register(Entry{UserID: "u1", Username: "alice", IsAdmin: true, Conn: adminConn})
	r.Register(Entry{UserID: "u2", Username: "bob", Conn: &fakeConn{}})

	admins := r.Admins()
	if len(admins) != 1 {
		t.Fatalf("expected 1 admin connection, got %d", len(admins))
	}
	if admins[0] != adminConn {
		t.Error("admins returned the wrong connection")
	}

	if got := len(r.Conns()); got != 2 {
		t.Errorf("expected 2 total connections, got %d", got)
	}
}
