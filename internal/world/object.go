// Package world holds the shared in-memory data model: object classes,
// object instances, the room graph, and the noun multimap they live in.
// Every mutator here is only ever called from the master's single dispatch
// goroutine (internal/master); nothing in this package takes a lock.
package world

// Class is the immutable, world-module-supplied behavior bundle for one
// object class. A nil hook means default permissive behavior.
type Class struct {
	Name string

	// Serialize/Deserialize persist an object's opaque Payload.
	Serialize   func(o *Object) []byte
	Deserialize func(o *Object, data []byte)

	// Take/Drop veto the corresponding action by returning false.
	Take func(o *Object, userKey string) bool
	Drop func(o *Object, userKey string) bool

	Clone   func(payload any) any
	Destroy func(o *Object)

	// Describe renders a single object for LOOKAT; userKey identifies the
	// viewer so world modules can vary description by observer.
	Describe func(o *Object, userKey string) string
}

func (c *Class) take(o *Object, userKey string) bool {
	if c == nil || c.Take == nil {
		return true
	}
	return c.Take(o, userKey)
}

func (c *Class) drop(o *Object, userKey string) bool {
	if c == nil || c.Drop == nil {
		return true
	}
	return c.Drop(o, userKey)
}

func (c *Class) describe(o *Object, userKey string) string {
	if c == nil || c.Describe == nil {
		return o.Name
	}
	return c.Describe(o, userKey)
}

// Object is one instance of a Class living in exactly one container: a
// room's Multimap or a user's inventory Multimap, never both. Moving an
// object between containers is duplicate-then-remove: see Dup.
type Object struct {
	Name           string // lowercase noun, no article
	Class          *Class
	DefaultArticle bool
	Hidden         bool
	List           bool
	Payload        any
}

// Take consults the class hook; returns false to veto.
func (o *Object) Take(userKey string) bool { return o.Class.take(o, userKey) }

// Drop consults the class hook; returns false to veto.
func (o *Object) Drop(userKey string) bool { return o.Class.drop(o, userKey) }

// Describe renders o for LOOKAT.
func (o *Object) Describe(userKey string) string { return o.Class.describe(o, userKey) }

// Dup makes an identity-free duplicate of o, used for every "move" so that
// container transfer is always duplicate+remove rather than a pointer move.
func (o *Object) Dup() *Object {
	dup := &Object{
		Name:           o.Name,
		Class:          o.Class,
		DefaultArticle: o.DefaultArticle,
		Hidden:         o.Hidden,
		List:           o.List,
		Payload:        o.Payload,
	}
	if o.Class != nil && o.Class.Clone != nil {
		dup.Payload = o.Class.Clone(o.Payload)
	}
	return dup
}

// New constructs an object of the named class. Objects are listed in room
// descriptions by default; callers clear List for scenery that should stay
// out of the listing without being outright Hidden.
func New(name string, class *Class) *Object {
	return &Object{Name: name, Class: class, List: true}
}
