// Package session implements the worker side of a connection: a per-client
// goroutine pair translating line-based TCP traffic into the master's
// request protocol and back. Two goroutines are spawned per connection:
//
//	readLines - scans newline-delimited input off the socket.
//	writePump - drains the master's reply channel, renders BCASTMSG/
//	            PRINTNEWLINE/KICK packets to the socket, and signals request
//	            completion back to the command loop on CmdAllDone.
//
// Nothing here ever touches world.Graph, userdb.DB or any other master-only
// state directly - a Machine only ever speaks through its ipc.Endpoint.
package session

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"netcosm/internal/auth"
	"netcosm/internal/ipc"
)

// State is the worker-local mirror of a session's authentication stage.
// Index order matches the LISTCLIENTS descriptor table exactly.
type State int

const (
	StateInit State = iota
	StateLoginScreen
	StateCheckingCredentials
	StateLoggedInUser
	StateLoggedInAdmin
	StateAccessDenied
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateLoginScreen:
		return "LOGIN SCREEN"
	case StateCheckingCredentials:
		return "CHECKING CREDENTIALS"
	case StateLoggedInUser:
		return "LOGGED IN AS USER"
	case StateLoggedInAdmin:
		return "LOGGED IN AS ADMIN"
	case StateAccessDenied:
		return "ACCESS DENIED"
	default:
		return "UNKNOWN"
	}
}

// privAdmin mirrors userdb.PrivAdmin's wire value without importing
// userdb (session never touches the user table directly, only its wire
// encoding via ipc.UserData).
const privAdmin = 1

// MaxLoginAttempts bounds how many bad username/password rounds a
// connection gets before it moves to StateAccessDenied and disconnects.
const MaxLoginAttempts = 3

const writeTimeout = 10 * time.Second

// Machine owns one accepted connection end to end.
type Machine struct {
	ID       ipc.ClientID
	conn     net.Conn
	endpoint ipc.Endpoint
	log      *slog.Logger
	hasher   auth.Hasher

	state         State
	username      string
	rawMode       bool
	loginAttempts int

	doneCh  chan struct{}
	replyCh chan []byte
	w       *bufio.Writer
}

// New builds a Machine bound to conn and its private endpoint to the
// master. The master has already registered id before Run is called.
func New(id ipc.ClientID, conn net.Conn, endpoint ipc.Endpoint, log *slog.Logger) *Machine {
	return &Machine{
		ID:       id,
		conn:     conn,
		endpoint: endpoint,
		log:      log,
		state:    StateLoginScreen,
		doneCh:   make(chan struct{}, 1),
		replyCh:  make(chan []byte, 1),
		w:        bufio.NewWriter(conn),
	}
}

// State reports the machine's current stage, for tests and diagnostics.
func (m *Machine) State() State { return m.state }

// Run drives the connection until it disconnects, is kicked, or ctx is
// canceled. It always closes conn before returning; the caller (master's
// connection manager) observes the resulting goroutine exit to remove the
// ClientSession and close the endpoint.
func (m *Machine) Run(ctx context.Context) {
	defer m.conn.Close()

	go m.writePump()

	lines := make(chan string)
	go m.readLines(lines)

	m.writeString("login: ")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !m.handleLine(line) {
				return
			}
		}
	}
}

// readLines scans conn for LF/CRLF-terminated lines, forwarding trimmed
// text on lines and closing it when the connection ends.
func (m *Machine) readLines(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(m.conn)
	for scanner.Scan() {
		lines <- strings.TrimRight(scanner.Text(), "\r")
	}
}

// writePump renders every packet the master sends this worker. BCASTMSG
// and PRINTNEWLINE go straight to the socket; CmdAllDone and anything else
// (the reply payload of whichever request is in flight) are handed back
// to the blocked requester via doneCh/replyCh; CmdKick prints its payload
// and closes the connection, ending the session.
func (m *Machine) writePump() {
	for pkt := range m.endpoint.ToWorker {
		switch pkt.Cmd {
		case ipc.CmdAllDone:
			select {
			case m.doneCh <- struct{}{}:
			default:
			}
		case ipc.CmdBcastMsg:
			m.writeRaw(pkt.Payload)
		case ipc.CmdPrintNewline:
			m.writeRaw([]byte("\n"))
		case ipc.CmdRawMode:
			m.rawMode = !m.rawMode
		case ipc.CmdKick:
			m.writeRaw(pkt.Payload)
			m.conn.Close()
		default:
			select {
			case m.replyCh <- pkt.Payload:
			default:
			}
		}
	}
}

// request sends one packet to the master and blocks until its ALLDONE,
// returning the last non-terminal reply payload seen along the way (nil
// if the request carried none), reproducing "one logical RPC per call".
// A BCASTMSG payload too large for one packet is split by the sender into
// MsgMax-1-sized chunks, each its own request/ALLDONE round trip; any
// other oversized payload is truncated rather than tripping the
// master-side packet assertion on user-typed input.
func (m *Machine) request(cmd byte, payload []byte) []byte {
	const chunk = ipc.MsgMax - 1
	if cmd == ipc.CmdBcastMsg && len(payload) > chunk {
		var reply []byte
		for off := 0; off < len(payload); off += chunk {
			end := off + chunk
			if end > len(payload) {
				end = len(payload)
			}
			reply = m.roundTrip(cmd, payload[off:end])
		}
		return reply
	}
	if len(payload) > chunk {
		payload = payload[:chunk]
	}
	return m.roundTrip(cmd, payload)
}

func (m *Machine) roundTrip(cmd byte, payload []byte) []byte {
	ipc.Send(m.endpoint.ToMaster, ipc.Packet{SenderID: m.ID, Cmd: cmd, Payload: payload})
	var reply []byte
	for {
		select {
		case <-m.doneCh:
			// writePump queues the reply before ALLDONE, so if both are
			// pending, select's randomization must not drop the reply.
			select {
			case reply = <-m.replyCh:
			default:
			}
			return reply
		case reply = <-m.replyCh:
		}
	}
}

func (m *Machine) writeString(s string) { m.writeRaw([]byte(s)) }

func (m *Machine) writeRaw(b []byte) {
	m.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	m.w.Write(b)
	m.w.Flush()
}

func (m *Machine) handleLine(line string) bool {
	switch m.state {
	case StateLoginScreen:
		m.username = strings.TrimSpace(line)
		m.state = StateCheckingCredentials
		m.sendChangeState()
		m.writeString("password: ")
		return true

	case StateCheckingCredentials:
		return m.checkCredentials(line)

	case StateLoggedInUser, StateLoggedInAdmin:
		m.handleCommand(line)
		m.writeString("> ")
		return true

	default:
		return false
	}
}

func (m *Machine) checkCredentials(password string) bool {
	reply := m.request(ipc.CmdGetUserData, []byte(m.username))
	data, ok := ipc.DecodeUserData(reply)

	if ok && data.Username == m.username && m.hasher.Verify(data.Salt, password, data.PassHash) {
		m.request(ipc.CmdChangeUser, []byte(m.username))
		if data.Priv >= privAdmin {
			m.state = StateLoggedInAdmin
		} else {
			m.state = StateLoggedInUser
		}
		m.sendChangeState()
		m.loginAttempts = 0
		m.writeString(fmt.Sprintf("Welcome, %s.\n", m.username))
		m.request(ipc.CmdSetRoom, nil)
		m.request(ipc.CmdGetRoomName, nil)
		m.request(ipc.CmdGetRoomDesc, nil)
		m.writeString("> ")
		return true
	}

	m.loginAttempts++
	if m.loginAttempts >= MaxLoginAttempts {
		m.state = StateAccessDenied
		m.sendChangeState()
		m.writeString("Access denied.\n")
		m.log.Warn("access denied", "id", m.ID, "user", m.username, "attempts", m.loginAttempts)
		return false
	}
	m.state = StateLoginScreen
	m.writeString("Invalid credentials.\nlogin: ")
	return true
}

// sendChangeState reports the worker's current stage to the master, which
// shows it in LISTCLIENTS and checks it before running admin-only requests.
func (m *Machine) sendChangeState() {
	m.request(ipc.CmdChangeState, []byte{byte(m.state)})
}
