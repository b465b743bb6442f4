// Package master implements the single-goroutine master process: the
// request table and dispatcher, the connection manager, the event loop,
// and the glue that wires persistence and the world module together.
// Nothing outside this package ever mutates world.Graph, userdb.DB or the
// client table directly; workers (internal/session) reach the master
// only through their ipc.Endpoint.
package master

import (
	"log/slog"
	"net"
	"sort"
	"time"

	"netcosm/internal/ipc"
	"netcosm/internal/session"
	"netcosm/internal/userdb"
	"netcosm/internal/world"
	"netcosm/internal/worldmod"
)

// ClientSession is the master's record of one live worker. Every field
// is read and written only from the master's dispatch goroutine.
type ClientSession struct {
	ID       ipc.ClientID
	Addr     string
	State    session.State
	Username string
	Room     world.RoomID
	RawMode  bool
	Endpoint ipc.Endpoint

	cancel func() // stops this client's session.Machine.Run
}

// Config bundles the dependencies Server.New needs beyond the listener
// itself: the resolved world module, loaded (or freshly bootstrapped)
// user database, and the save paths.
type Config struct {
	Module     worldmod.Module
	Graph      *world.Graph
	Users      *userdb.DB
	WorldPath  string
	UserPath   string
	RoomIDs    []world.RoomID
	SendBuf    int // per-endpoint channel buffer depth
	Log        *slog.Logger
}

// Server owns every piece of shared state: the client table, the world
// graph, the user database, and the static request table built once at
// construction.
type Server struct {
	log     *slog.Logger
	module  worldmod.Module
	graph   *world.Graph
	users   *userdb.DB
	table   map[byte]requestEntry
	verbs   map[string]*world.Verb
	sendBuf int

	worldPath string
	userPath  string
	roomIDs   []world.RoomID
	saver     saverMarker

	clients map[ipc.ClientID]*ClientSession
	nextID  ipc.ClientID
	readers map[ipc.ClientID]<-chan ipc.Packet

	newConns   chan net.Conn
	disconnect chan ipc.ClientID
	simTick    chan struct{}
}

// saverMarker is the narrow surface master needs from internal/persist's
// Saver, named here to avoid the dispatch table depending on concrete
// save-path plumbing (see server.go for the real implementation wired at
// New()).
type saverMarker interface {
	Mark(force bool, save func() error)
}

// New builds a Server from cfg. The listener is created by the caller
// (cmd/netcosmd) and handed to Serve so tests can use an in-memory
// net.Pipe-backed listener instead of a real socket.
func New(cfg Config, saver saverMarker) *Server {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 256
	}
	verbs := make(map[string]*world.Verb, len(cfg.Module.Verbs()))
	for _, v := range cfg.Module.Verbs() {
		verbs[v.Name] = v
	}
	s := &Server{
		log:        cfg.Log,
		module:     cfg.Module,
		graph:      cfg.Graph,
		users:      cfg.Users,
		verbs:      verbs,
		sendBuf:    cfg.SendBuf,
		worldPath:  cfg.WorldPath,
		userPath:   cfg.UserPath,
		roomIDs:    cfg.RoomIDs,
		saver:      saver,
		clients:    make(map[ipc.ClientID]*ClientSession),
		nextID:     1,
		readers:    make(map[ipc.ClientID]<-chan ipc.Packet),
		newConns:   make(chan net.Conn),
		disconnect: make(chan ipc.ClientID, 8),
		simTick:    make(chan struct{}, 1),
	}
	s.table = buildRequestTable()
	// Channel pairs preserve message boundaries on their own; still
	// announce the chosen transport once.
	s.log.Debug("session transport: in-process channel pairs", "buffer", s.sendBuf)
	return s
}

// NumClients reports the live session count; it always equals the number
// of entries in the client table.
func (s *Server) NumClients() int { return len(s.clients) }

// Accept is called by the connection-manager's dedicated accept
// goroutine (see loop.go) for every newly established TCP connection.
// It never touches Server state directly; it only hands conn to the
// master goroutine over newConns, preserving the single-writer
// invariant.
func (s *Server) Accept(conn net.Conn) { s.newConns <- conn }

// acceptConn runs on the master goroutine: it allocates a ClientID,
// builds the ipc.Endpoint pair, registers the ClientSession, and starts
// the worker's session.Machine in its own goroutine.
func (s *Server) acceptConn(conn net.Conn) {
	id := s.nextID
	s.nextID++

	endpoint := ipc.NewEndpointPair(s.sendBuf)
	cs := &ClientSession{
		ID:       id,
		Addr:     conn.RemoteAddr().String(),
		State:    session.StateLoginScreen,
		Room:     world.RoomNone,
		Endpoint: endpoint,
	}
	s.clients[id] = cs

	machine := session.New(id, conn, endpoint, s.log)
	done := make(chan struct{})
	go func() {
		machine.Run(runContext{done})
		s.disconnect <- id
	}()
	cs.cancel = func() { close(done) }

	s.log.Info("client connected", "id", id, "addr", cs.Addr)

	// Mirror the worker's outbound channel into the single fan-in the
	// event loop selects on; see loop.go's registerReader.
	s.registerReader(id, endpoint.ToMaster)
}

// removeConn tears down the client identified by id: leaves its current
// room, drops the client-table entry, and closes the endpoint's
// master->worker side so the worker's writePump exits.
func (s *Server) removeConn(id ipc.ClientID) {
	cs, ok := s.clients[id]
	if !ok {
		return
	}
	if room := s.graph.Get(cs.Room); room != nil {
		room.RemoveUser(uint64(id))
	}
	delete(s.clients, id)
	close(cs.Endpoint.ToWorker)
	delete(s.readers, id)
	s.log.Info("client disconnected", "id", id, "total", len(s.clients))
}

// registerReader adds ch to the set of worker channels the event loop
// fans into via reflect.Select; see loop.go.
func (s *Server) registerReader(id ipc.ClientID, ch <-chan ipc.Packet) {
	s.readers[id] = ch
}

// shutdownSessions cancels every live worker's Machine.Run, used when the
// master's event loop exits so connected sockets don't dangle past
// process shutdown.
func (s *Server) shutdownSessions() {
	for _, cs := range s.clients {
		cs.cancel()
	}
}

// orderedClients returns every live session sorted by ClientID, giving
// fan-out (BCASTMSG, LISTCLIENTS, KICK, KICKALL) a deterministic order.
func (s *Server) orderedClients() []*ClientSession {
	out := make([]*ClientSession, 0, len(s.clients))
	for _, cs := range s.clients {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// runContext adapts a plain done-channel to the context.Context subset
// session.Machine.Run needs (Done only); the master only ever cancels a
// single worker (kick / shutdown), never needs Err()/Deadline()/Value().
type runContext struct{ done chan struct{} }

func (r runContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (r runContext) Done() <-chan struct{}       { return r.done }
func (r runContext) Err() error                  { return nil }
func (r runContext) Value(key any) any           { return nil }
