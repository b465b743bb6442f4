package persist

import (
	"path/filepath"
	"testing"

	"netcosm/internal/userdb"
	"netcosm/internal/world"
)

type stubResolver struct{ classes map[string]*world.Class }

func (s stubResolver) Class(name string) *world.Class { return s.classes[name] }

func TestWorldRoundTrip(t *testing.T) {
	lampClass := &world.Class{Name: "lamp"}
	a := world.NewRoom(0, "Start", "a plain room")
	lamp := world.New("lamp", lampClass)
	lamp.DefaultArticle = true
	a.Objects.Insert("lamp", lamp)

	graph := world.NewGraph([]*world.Room{a})
	dir := t.TempDir()
	path := filepath.Join(dir, "world.dat")

	if err := SaveWorld(path, graph, "testworld", []world.RoomID{0}); err != nil {
		t.Fatalf("SaveWorld: %v", err)
	}

	// Overlay onto a fresh graph built the way world-init would build it.
	b := world.NewRoom(0, "Start", "a plain room")
	freshGraph := world.NewGraph([]*world.Room{b})

	resolver := stubResolver{classes: map[string]*world.Class{"lamp": lampClass}}
	name, err := LoadWorld(path, freshGraph, resolver)
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if name != "testworld" {
		t.Fatalf("got world name %q", name)
	}

	list, n := freshGraph.Get(0).Objects.Lookup("lamp")
	if n != 1 || list[0].Name != "lamp" || list[0].Class != lampClass {
		t.Fatalf("lamp did not round-trip: %+v", list)
	}
}

func TestUserDBRoundTrip(t *testing.T) {
	db := userdb.New()
	u, err := db.CreateUser("alice", "hunter2", userdb.PrivAdmin)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u.Objects.Insert("coin", world.New("coin", nil))

	dir := t.TempDir()
	path := filepath.Join(dir, "users.dat")
	if err := SaveUsers(path, db, nil); err != nil {
		t.Fatalf("SaveUsers: %v", err)
	}

	loaded, err := LoadUsers(path, nil, nil)
	if err != nil {
		t.Fatalf("LoadUsers: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("want 1 user, got %d", loaded.Len())
	}
	got := loaded.Lookup("alice")
	if got == nil {
		t.Fatalf("alice missing after round-trip")
	}
	if got.PassHash != u.PassHash || got.Priv != userdb.PrivAdmin {
		t.Fatalf("credentials did not round-trip: %+v", got)
	}
	if _, n := got.Objects.Lookup("coin"); n != 1 {
		t.Fatalf("inventory did not round-trip")
	}
	if loaded.Authenticate("alice", "hunter2") == nil {
		t.Fatalf("authenticate with the round-tripped hash should succeed")
	}
	if loaded.Authenticate("alice", "wrong") != nil {
		t.Fatalf("authenticate with a bad password should fail")
	}
}

type stubUserHooks struct{ calls int }

func (h *stubUserHooks) SerializeUserData(u *userdb.User) []byte {
	return []byte("quest:" + u.Username)
}

func (h *stubUserHooks) DeserializeUserData(u *userdb.User, data []byte) {
	h.calls++
	u.WorldData = data
}

func TestUserDataHooksRoundTrip(t *testing.T) {
	db := userdb.New()
	if _, err := db.CreateUser("alice", "hunter2", userdb.PrivUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "users-hooks.dat")
	saveHooks := &stubUserHooks{}
	if err := SaveUsers(path, db, saveHooks); err != nil {
		t.Fatalf("SaveUsers: %v", err)
	}

	loadHooks := &stubUserHooks{}
	loaded, err := LoadUsers(path, nil, loadHooks)
	if err != nil {
		t.Fatalf("LoadUsers: %v", err)
	}
	got := loaded.Lookup("alice")
	if got == nil {
		t.Fatalf("alice missing after round-trip")
	}
	if string(got.WorldData) != "quest:alice" {
		t.Fatalf("world data did not round-trip through hooks: %q", got.WorldData)
	}
	if loadHooks.calls != 1 {
		t.Fatalf("want DeserializeUserData called once, got %d", loadHooks.calls)
	}
}
