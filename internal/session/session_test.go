package session

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"netcosm/internal/auth"
	"netcosm/internal/ipc"
)

// fakeMaster answers requests on endpoint.ToMaster the way internal/master
// would, scripted per test: a handler per command code, always finishing
// with a CmdAllDone the way dispatch.go's sendAllDone does.
type fakeMaster struct {
	endpoint ipc.Endpoint
	handlers map[byte]func(payload []byte) []byte // nil reply -> no reply packet
}

func newFakeMaster(endpoint ipc.Endpoint) *fakeMaster {
	return &fakeMaster{endpoint: endpoint, handlers: map[byte]func([]byte) []byte{}}
}

func (f *fakeMaster) run() {
	for pkt := range f.endpoint.ToMaster {
		if h, ok := f.handlers[pkt.Cmd]; ok {
			if reply := h(pkt.Payload); reply != nil {
				f.endpoint.ToWorker <- ipc.Packet{Cmd: pkt.Cmd, Payload: reply}
			}
		}
		f.endpoint.ToWorker <- ipc.Packet{Cmd: ipc.CmdAllDone}
	}
}

func discardLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func validUserData(t *testing.T, username, password string, priv int32) []byte {
	t.Helper()
	var hasher auth.Hasher
	salt, err := hasher.NewSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	return ipc.EncodeUserData(ipc.UserData{
		Username:  username,
		Salt:      salt,
		PassHash:  hasher.Digest(salt, password),
		Priv:      priv,
		LastLogin: 0,
	})
}

// newHarness wires a Machine to one end of a net.Pipe and a fakeMaster,
// scripted with handlers, to its endpoint, returning the client-side conn
// to read/write against plus the running Machine.
func newHarness(t *testing.T, handlers map[byte]func([]byte) []byte) (net.Conn, *Machine) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	endpoint := ipc.NewEndpointPair(16)
	fm := newFakeMaster(endpoint)
	for cmd, h := range handlers {
		fm.handlers[cmd] = h
	}
	go fm.run()

	m := New(1, serverConn, endpoint, discardLog())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		clientConn.Close()
		<-done
	})
	return clientConn, m
}

// readAvailable drains whatever conn has buffered within wait, returning it
// as a string. Login/command prompts ("login: ", "password: ", "> ") are
// written without a trailing newline, so tests assert on substrings of the
// accumulated transcript rather than treating output as discrete lines.
func readAvailable(conn net.Conn, wait time.Duration) string {
	conn.SetReadDeadline(time.Now().Add(wait))
	defer conn.SetReadDeadline(time.Time{})
	buf := make([]byte, 4096)
	var out []byte
	for {
		n, err := conn.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	return string(out)
}

func TestLoginFlowSucceedsAndSetsRoom(t *testing.T) {
	setRoomCalled := false
	handlers := map[byte]func([]byte) []byte{
		ipc.CmdGetUserData: func(payload []byte) []byte {
			return validUserData(t, "alice", "hunter2", 0)
		},
		ipc.CmdSetRoom: func(payload []byte) []byte {
			setRoomCalled = true
			return nil
		},
		ipc.CmdGetRoomName: func([]byte) []byte { return nil },
		ipc.CmdGetRoomDesc: func([]byte) []byte { return nil },
	}
	conn, m := newHarness(t, handlers)

	conn.Write([]byte("alice\nhunter2\n"))
	out := readAvailable(conn, 300*time.Millisecond)

	if !strings.Contains(out, "Welcome, alice.\n") {
		t.Fatalf("transcript %q missing welcome banner", out)
	}
	if !setRoomCalled {
		t.Fatalf("SETROOM was never requested after a successful login")
	}
	if m.State() != StateLoggedInUser {
		t.Fatalf("state = %v, want StateLoggedInUser", m.State())
	}
}

func TestLoginFlowPromotesAdminPriv(t *testing.T) {
	handlers := map[byte]func([]byte) []byte{
		ipc.CmdGetUserData: func(payload []byte) []byte {
			return validUserData(t, "alice", "hunter2", privAdmin)
		},
		ipc.CmdSetRoom:     func([]byte) []byte { return nil },
		ipc.CmdGetRoomName: func([]byte) []byte { return nil },
		ipc.CmdGetRoomDesc: func([]byte) []byte { return nil },
	}
	conn, m := newHarness(t, handlers)

	conn.Write([]byte("alice\nhunter2\n"))
	readAvailable(conn, 300*time.Millisecond)

	if m.State() != StateLoggedInAdmin {
		t.Fatalf("state = %v, want StateLoggedInAdmin for priv >= admin", m.State())
	}
}

func TestLoginAttemptsAreBounded(t *testing.T) {
	handlers := map[byte]func([]byte) []byte{
		ipc.CmdGetUserData: func(payload []byte) []byte {
			return validUserData(t, "alice", "hunter2", 0)
		},
	}
	conn, m := newHarness(t, handlers)

	var attempts []byte
	for i := 0; i < MaxLoginAttempts; i++ {
		attempts = append(attempts, []byte("alice\nwrongpassword\n")...)
	}
	conn.Write(attempts)
	out := readAvailable(conn, 500*time.Millisecond)

	if !strings.Contains(out, "Access denied.\n") {
		t.Fatalf("transcript %q missing access-denied message", out)
	}
	if m.State() != StateAccessDenied {
		t.Fatalf("state = %v, want StateAccessDenied after %d bad attempts", m.State(), MaxLoginAttempts)
	}
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatalf("connection should have been closed after access denied")
	}
}

func TestRawModeTogglesOnEachRawModePacket(t *testing.T) {
	m := &Machine{
		endpoint: ipc.NewEndpointPair(4),
		doneCh:   make(chan struct{}, 1),
		replyCh:  make(chan []byte, 1),
	}
	go m.writePump()
	t.Cleanup(func() { close(m.endpoint.ToWorker) })

	if m.rawMode {
		t.Fatalf("rawMode should start false")
	}
	m.endpoint.ToWorker <- ipc.Packet{Cmd: ipc.CmdRawMode}
	waitFor(t, func() bool { return m.rawMode })

	m.endpoint.ToWorker <- ipc.Packet{Cmd: ipc.CmdRawMode}
	waitFor(t, func() bool { return !m.rawMode })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestHandleCommandRawModeForwardsVerbatim(t *testing.T) {
	endpoint := ipc.NewEndpointPair(4)
	m := &Machine{
		ID:       1,
		endpoint: endpoint,
		rawMode:  true,
		doneCh:   make(chan struct{}, 1),
		replyCh:  make(chan []byte, 1),
	}
	go m.writePump()
	t.Cleanup(func() { close(endpoint.ToWorker) })
	go func() {
		pkt := <-endpoint.ToMaster
		if pkt.Cmd != ipc.CmdExecVerb || string(pkt.Payload) != "anything at all" {
			t.Errorf("got cmd=%d payload=%q, want raw EXECVERB passthrough", pkt.Cmd, pkt.Payload)
		}
		endpoint.ToWorker <- ipc.Packet{Cmd: ipc.CmdAllDone}
	}()
	m.handleCommand("anything at all")
}

func TestMoveEncodesDirectionBigEndian(t *testing.T) {
	endpoint := ipc.NewEndpointPair(4)
	m := &Machine{
		ID:       1,
		endpoint: endpoint,
		doneCh:   make(chan struct{}, 1),
		replyCh:  make(chan []byte, 1),
	}
	go m.writePump()
	t.Cleanup(func() { close(endpoint.ToWorker) })
	go func() {
		pkt := <-endpoint.ToMaster
		if pkt.Cmd != ipc.CmdMove || len(pkt.Payload) != 4 {
			t.Errorf("got cmd=%d payload=%v, want 4-byte MOVE payload", pkt.Cmd, pkt.Payload)
			return
		}
		if binary.BigEndian.Uint32(pkt.Payload) != 0 {
			t.Errorf("north should encode as direction 0, got %d", binary.BigEndian.Uint32(pkt.Payload))
		}
		reply := make([]byte, 4)
		binary.BigEndian.PutUint32(reply, 0) // failed move: no follow-up room queries
		endpoint.ToWorker <- ipc.Packet{Cmd: ipc.CmdMove, Payload: reply}
		endpoint.ToWorker <- ipc.Packet{Cmd: ipc.CmdAllDone}
	}()
	m.move("north")
}
