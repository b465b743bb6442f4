package master

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"netcosm/internal/ipc"
	"netcosm/internal/session"
	"netcosm/internal/userdb"
	"netcosm/internal/world"
	"netcosm/internal/worldmod"
)

// fakeSaver counts Mark calls instead of touching disk, so tests never
// depend on internal/persist's file format.
type fakeSaver struct {
	marks int
	force int
}

func (f *fakeSaver) Mark(force bool, save func() error) {
	f.marks++
	if force {
		f.force++
	}
}

// fakeModule satisfies worldmod.Module with an empty symbol set; the test
// graph below is built directly rather than via worldmod.BuildGraph, so
// Rooms/Classes are never consulted and Verbs contributes no global verbs.
type fakeModule struct{}

func (fakeModule) Name() string            { return "stub" }
func (fakeModule) Classes() []*world.Class { return nil }
func (fakeModule) Verbs() []*world.Verb    { return nil }
func (fakeModule) Rooms() []worldmod.RoomDescriptor { return nil }
func (fakeModule) Simulation() (func(worldmod.Driver), time.Duration, bool) {
	return nil, 0, false
}
func (fakeModule) HandleRawInput(userKey string, data []byte, ctx world.VerbContext) {}
func (fakeModule) UserDataHooks() (func(*userdb.User) []byte, func(*userdb.User, []byte), bool) {
	return nil, nil, false
}

// newTestServer builds a Server with a two-room graph (A --north--> B, no
// room hooks) and two user accounts (alice as admin, bob as user), without
// going through Bootstrap/net.Listener. Tests attach clients with addClient.
func newTestServer(t *testing.T) (*Server, *fakeSaver) {
	t.Helper()

	roomA := world.NewRoom(0, "Room A", "You are in room A.")
	roomB := world.NewRoom(1, "Room B", "You are in room B.")
	roomA.Adjacent[world.DirNorth] = roomB.ID
	graph := world.NewGraph([]*world.Room{roomA, roomB})

	users := userdb.New()
	if _, err := users.CreateUser("alice", "hunter2", userdb.PrivAdmin); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, err := users.CreateUser("bob", "swordfish", userdb.PrivUser); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	saver := &fakeSaver{}
	s := New(Config{
		Module:  fakeModule{},
		Graph:   graph,
		Users:   users,
		SendBuf: 8,
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, saver)

	return s, saver
}

func addClient(s *Server, id ipc.ClientID, username string, st session.State, room world.RoomID) *ClientSession {
	cs := &ClientSession{
		ID:       id,
		Addr:     "127.0.0.1:0",
		State:    st,
		Username: username,
		Room:     room,
		Endpoint: ipc.NewEndpointPair(8),
	}
	s.clients[id] = cs
	if r := s.graph.Get(room); r != nil {
		r.AddUser(uint64(id))
	}
	return s.clients[id]
}

func recvText(t *testing.T, cs *ClientSession) string {
	t.Helper()
	select {
	case pkt := <-cs.Endpoint.ToWorker:
		return string(pkt.Payload)
	case <-time.After(time.Second):
		t.Fatalf("client %d: expected a reply packet, got none", cs.ID)
		return ""
	}
}

func drainAllDone(t *testing.T, cs *ClientSession) {
	t.Helper()
	for {
		select {
		case pkt := <-cs.Endpoint.ToWorker:
			if pkt.Cmd == ipc.CmdAllDone {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("client %d: never saw ALLDONE", cs.ID)
			return
		}
	}
}

func TestDispatchBcastReachesEveryClient(t *testing.T) {
	s, _ := newTestServer(t)
	a := addClient(s, 1, "alice", session.StateLoggedInAdmin, 0)
	b := addClient(s, 2, "bob", session.StateLoggedInUser, 0)

	s.dispatch(ipc.Packet{SenderID: a.ID, Cmd: ipc.CmdBcastMsg, Payload: []byte("hi")})

	if got := recvText(t, a); got != "hi" {
		t.Fatalf("sender got %q, want echo of its own broadcast", got)
	}
	if got := recvText(t, b); got != "hi" {
		t.Fatalf("other client got %q, want the broadcast", got)
	}
	drainAllDone(t, a)
}

func TestDispatchRequireAdminRejectsNonAdmin(t *testing.T) {
	s, _ := newTestServer(t)
	bob := addClient(s, 1, "bob", session.StateLoggedInUser, 0)
	target := addClient(s, 2, "alice", session.StateLoggedInAdmin, 0)

	s.dispatch(ipc.Packet{SenderID: bob.ID, Cmd: ipc.CmdKick, Payload: EncodeKick(target.ID, "begone")})

	if got := recvText(t, bob); got != "Permission denied.\n" {
		t.Fatalf("got %q, want permission-denied text", got)
	}
	select {
	case pkt := <-target.Endpoint.ToWorker:
		t.Fatalf("target should never have been kicked, got packet cmd=%d", pkt.Cmd)
	default:
	}
}

func TestDispatchKickOnlyHitsTarget(t *testing.T) {
	s, _ := newTestServer(t)
	admin := addClient(s, 1, "alice", session.StateLoggedInAdmin, 0)
	victim := addClient(s, 2, "bob", session.StateLoggedInUser, 0)
	bystander := addClient(s, 3, "carol", session.StateLoggedInUser, 0)

	s.dispatch(ipc.Packet{SenderID: admin.ID, Cmd: ipc.CmdKick, Payload: EncodeKick(victim.ID, "begone\n")})

	pkt := <-victim.Endpoint.ToWorker
	if pkt.Cmd != ipc.CmdKick || string(pkt.Payload) != "begone\n" {
		t.Fatalf("victim got cmd=%d payload=%q, want CmdKick/begone", pkt.Cmd, pkt.Payload)
	}
	select {
	case pkt := <-bystander.Endpoint.ToWorker:
		t.Fatalf("bystander should not be kicked, got cmd=%d", pkt.Cmd)
	default:
	}
	if got := recvText(t, admin); got != "Success.\n" {
		t.Fatalf("admin got %q, want success text", got)
	}
}

func TestHandleMoveVetoAndSuccess(t *testing.T) {
	s, _ := newTestServer(t)
	roomB := s.graph.Get(1)
	roomB.OnEnter = func(world.RoomID, string) bool { return false }

	alice := addClient(s, 1, "alice", session.StateLoggedInAdmin, 0)

	payload := make([]byte, 4)
	payload[3] = byte(world.DirNorth)
	s.dispatch(ipc.Packet{SenderID: alice.ID, Cmd: ipc.CmdMove, Payload: payload})

	txt := recvText(t, alice)
	if txt != "You cannot go that way.\n" {
		t.Fatalf("expected veto message, got %q", txt)
	}
	reply := <-alice.Endpoint.ToWorker
	if reply.Cmd != ipc.CmdMove || len(reply.Payload) != 4 || reply.Payload[3] != 0 {
		t.Fatalf("expected MOVE failure reply, got %+v", reply)
	}
	if alice.Room != 0 {
		t.Fatalf("room should not have changed on veto")
	}
	drainAllDone(t, alice)

	roomB.OnEnter = nil
	s.dispatch(ipc.Packet{SenderID: alice.ID, Cmd: ipc.CmdMove, Payload: payload})
	reply = <-alice.Endpoint.ToWorker
	if reply.Cmd != ipc.CmdMove || reply.Payload[3] != 1 {
		t.Fatalf("expected MOVE success reply, got %+v", reply)
	}
	if alice.Room != 1 {
		t.Fatalf("alice should now be in room 1, got %d", alice.Room)
	}
	if s.graph.Get(0).Occupants[1] {
		t.Fatalf("alice should have left room 0's occupant set")
	}
	if !s.graph.Get(1).Occupants[1] {
		t.Fatalf("alice should be in room 1's occupant set")
	}
}

func TestHandleTakeDropRoundTrip(t *testing.T) {
	s, saver := newTestServer(t)
	alice := addClient(s, 1, "alice", session.StateLoggedInUser, 0)
	room := s.graph.Get(0)

	lamp := world.New("lamp", nil)
	room.Objects.Insert("lamp", lamp)

	s.dispatch(ipc.Packet{SenderID: alice.ID, Cmd: ipc.CmdTake, Payload: []byte("lamp")})
	if got := recvText(t, alice); got != "Taken.\n" {
		t.Fatalf("take: got %q", got)
	}
	if _, n := room.Objects.Lookup("lamp"); n != 0 {
		t.Fatalf("lamp should have left the room")
	}
	u := s.users.Lookup("alice")
	if _, n := u.Objects.Lookup("lamp"); n != 1 {
		t.Fatalf("lamp should be in alice's inventory")
	}
	if saver.marks == 0 {
		t.Fatalf("take should have marked the saver")
	}
	drainAllDone(t, alice)

	s.dispatch(ipc.Packet{SenderID: alice.ID, Cmd: ipc.CmdDrop, Payload: []byte("lamp")})
	if got := recvText(t, alice); got != "Dropped.\n" {
		t.Fatalf("drop: got %q", got)
	}
	if _, n := u.Objects.Lookup("lamp"); n != 0 {
		t.Fatalf("lamp should have left alice's inventory")
	}
	if _, n := room.Objects.Lookup("lamp"); n != 1 {
		t.Fatalf("lamp should be back in the room")
	}
}

func TestHandleDropVetoRollsBack(t *testing.T) {
	s, _ := newTestServer(t)
	alice := addClient(s, 1, "alice", session.StateLoggedInUser, 0)

	vetoClass := &world.Class{
		Drop: func(o *world.Object, userKey string) bool { return false },
	}
	box := world.New("box", vetoClass)
	s.users.AddObject("alice", box)

	s.dispatch(ipc.Packet{SenderID: alice.ID, Cmd: ipc.CmdDrop, Payload: []byte("box")})
	if got := recvText(t, alice); got != "You cannot drop that.\n" {
		t.Fatalf("got %q, want veto message", got)
	}
	u := s.users.Lookup("alice")
	if _, n := u.Objects.Lookup("box"); n != 1 {
		t.Fatalf("box should still be in alice's inventory after a vetoed drop")
	}
	if _, n := s.graph.Get(0).Objects.Lookup("box"); n != 0 {
		t.Fatalf("room should not keep a duplicate box after rollback")
	}
}

func TestHandleAddDelUserDataRequiresAdmin(t *testing.T) {
	s, saver := newTestServer(t)
	bob := addClient(s, 1, "bob", session.StateLoggedInUser, 0)

	s.dispatch(ipc.Packet{SenderID: bob.ID, Cmd: ipc.CmdAddUserData, Payload: []byte("nope")})
	if got := recvText(t, bob); got != "Permission denied.\n" {
		t.Fatalf("got %q, want permission denied", got)
	}
	if s.users.Lookup("nope") != nil {
		t.Fatalf("non-admin must not be able to create users")
	}
	drainAllDone(t, bob)

	s.dispatch(ipc.Packet{SenderID: bob.ID, Cmd: ipc.CmdDelUserData, Payload: []byte("alice")})
	if got := recvText(t, bob); got != "Permission denied.\n" {
		t.Fatalf("got %q, want permission denied", got)
	}
	if s.users.Lookup("alice") == nil {
		t.Fatalf("non-admin must not be able to delete users")
	}
	if saver.force != 0 {
		t.Fatalf("rejected admin op should not mark the saver")
	}
}

func TestFormatClientDescriptorMarksSelf(t *testing.T) {
	s, _ := newTestServer(t)
	a := addClient(s, 1, "alice", session.StateLoggedInAdmin, 0)
	b := addClient(s, 2, "bob", session.StateLoggedInUser, 0)

	self := formatClientDescriptor(a, a)
	other := formatClientDescriptor(b, a)
	if !contains(self, "[YOU]") {
		t.Fatalf("own descriptor should be marked [YOU]: %q", self)
	}
	if contains(other, "[YOU]") {
		t.Fatalf("other client's descriptor should not be marked [YOU]: %q", other)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
