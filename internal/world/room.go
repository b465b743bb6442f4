package world

// RoomID is a small stable integer identifying a room. RoomNone marks a
// blocked adjacency slot.
type RoomID int32

// RoomNone denotes "no adjacency in this direction".
const RoomNone RoomID = -1

// Direction indexes a Room's Adjacent array.
type Direction int

const (
	DirNorth Direction = iota
	DirSouth
	DirEast
	DirWest
	DirUp
	DirDown
	DirCount
)

var directionNames = map[string]Direction{
	"north": DirNorth, "n": DirNorth,
	"south": DirSouth, "s": DirSouth,
	"east": DirEast, "e": DirEast,
	"west": DirWest, "w": DirWest,
	"up": DirUp, "u": DirUp,
	"down": DirDown, "d": DirDown,
}

// ParseDirection resolves a verb argument to a Direction. ok is false for
// anything not in the fixed direction vocabulary.
func ParseDirection(s string) (Direction, bool) {
	d, ok := directionNames[s]
	return d, ok
}

// Valid reports whether d is in range for indexing Adjacent. Direction
// values arrive over the wire as a plain int, so every array access is
// bounds-checked first.
func (d Direction) Valid() bool { return d >= 0 && d < DirCount }

// Verb maps a tokenized first command word to its implementation. Exec
// receives the remainder of the line and the acting user's key.
type Verb struct {
	Name string
	Exec func(args string, userKey string, ctx VerbContext)
}

// VerbContext is the minimal surface a verb handler needs from the master,
// kept here (rather than importing internal/master, which would cycle)
// as a narrow interface the master satisfies.
type VerbContext interface {
	Room() RoomID
	Reply(format string, args ...any)
	SetRawMode(on bool)
}

// Room is created at world-init and never destroyed at runtime; only its
// Objects multimap, verb registrations and world-module payload mutate.
type Room struct {
	ID          RoomID
	Name        string
	Description string
	Adjacent    [DirCount]RoomID
	Objects     *Multimap
	Verbs       map[string]*Verb

	// OnEnter/OnLeave veto movement by returning false. Nil counts as true.
	OnEnter func(room RoomID, userKey string) bool
	OnLeave func(room RoomID, userKey string) bool

	// Occupants is the set of sessions currently present, keyed by the
	// numeric client id (uint64, matching ipc.ClientID's underlying type,
	// kept numeric here rather than importing internal/ipc to avoid a
	// needless package edge).
	Occupants map[uint64]bool
}

// NewRoom returns an empty room with every adjacency set to RoomNone.
func NewRoom(id RoomID, name, desc string) *Room {
	r := &Room{
		ID:          id,
		Name:        name,
		Description: desc,
		Objects:     NewMultimap(),
		Verbs:       make(map[string]*Verb),
		Occupants:   make(map[uint64]bool),
	}
	for d := range r.Adjacent {
		r.Adjacent[d] = RoomNone
	}
	return r
}

// AddUser records that clientID is now present in the room.
func (r *Room) AddUser(clientID uint64) { r.Occupants[clientID] = true }

// RemoveUser records that clientID has left the room.
func (r *Room) RemoveUser(clientID uint64) { delete(r.Occupants, clientID) }

func (r *Room) enter(userKey string) bool {
	if r.OnEnter == nil {
		return true
	}
	return r.OnEnter(r.ID, userKey)
}

func (r *Room) leave(userKey string) bool {
	if r.OnLeave == nil {
		return true
	}
	return r.OnLeave(r.ID, userKey)
}

// Graph is the full set of rooms, keyed by ID.
type Graph struct {
	rooms map[RoomID]*Room
}

// NewGraph builds a Graph from a slice of rooms.
func NewGraph(rooms []*Room) *Graph {
	g := &Graph{rooms: make(map[RoomID]*Room, len(rooms))}
	for _, r := range rooms {
		g.rooms[r.ID] = r
	}
	return g
}

// Get returns the room with the given id, or nil.
func (g *Graph) Get(id RoomID) *Room { return g.rooms[id] }

// Move attempts to move a user from current to the room adjacent in
// direction dir. It returns the destination room id and whether the move
// succeeded. The destination's enter hook is consulted before the source's
// leave hook, and both must pass.
func (g *Graph) Move(currentID RoomID, dir Direction, userKey string) (RoomID, bool) {
	current := g.Get(currentID)
	if current == nil || !dir.Valid() {
		return RoomNone, false
	}
	newID := current.Adjacent[dir]
	if newID == RoomNone {
		return RoomNone, false
	}
	newRoom := g.Get(newID)
	if newRoom == nil {
		return RoomNone, false
	}
	if !newRoom.enter(userKey) || !current.leave(userKey) {
		return newID, false
	}
	return newID, true
}
