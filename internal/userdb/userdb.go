// Package userdb is the master-only in-memory user database: username to
// credentials, privilege, inventory, and opaque world-module payload.
package userdb

import (
	"fmt"
	"time"

	"netcosm/internal/auth"
	"netcosm/internal/world"
)

// Priv is a user's privilege level.
type Priv int

const (
	PrivNone Priv = iota - 1
	PrivUser
	PrivAdmin
)

// User is one account. Lookup is case-sensitive on Username; inventory
// lookups into Objects are case-insensitive on the noun (handled by the
// caller lowercasing before calling Objects.Lookup).
type User struct {
	Username  string
	Salt      []byte
	PassHash  string
	Priv      Priv
	LastLogin time.Time
	Objects   *world.Multimap
	WorldData []byte // opaque payload, (de)serialized by the world module
}

// DB is the in-memory user table. All mutators are intended to be called
// only from the master's dispatch goroutine; nothing here takes a lock.
type DB struct {
	byName map[string]*User
	hasher auth.Hasher
}

// New returns an empty DB.
func New() *DB {
	return &DB{byName: make(map[string]*User)}
}

// Lookup returns the user with the given exact-case username, or nil.
func (db *DB) Lookup(username string) *User { return db.byName[username] }

// Add inserts user, overwriting any existing entry with the same username.
func (db *DB) Add(u *User) bool {
	if u.Objects == nil {
		u.Objects = world.NewMultimap()
	}
	db.byName[u.Username] = u
	return true
}

// Remove deletes the named user. Reports whether it existed.
func (db *DB) Remove(username string) bool {
	if _, ok := db.byName[username]; !ok {
		return false
	}
	delete(db.byName, username)
	return true
}

// Len returns the number of accounts.
func (db *DB) Len() int { return len(db.byName) }

// Iterate calls fn for every user in an unspecified but stable-for-this-call
// order, stopping early if fn returns false.
func (db *DB) Iterate(fn func(*User) bool) {
	for _, u := range db.byName {
		if !fn(u) {
			return
		}
	}
}

// CreateUser registers a brand-new account with a fresh salt and computed
// digest, overwriting any existing entry of the same name.
func (db *DB) CreateUser(username, password string, priv Priv) (*User, error) {
	salt, err := db.hasher.NewSalt()
	if err != nil {
		return nil, fmt.Errorf("userdb: generate salt: %w", err)
	}
	u := &User{
		Username:  username,
		Salt:      salt,
		PassHash:  db.hasher.Digest(salt, password),
		Priv:      priv,
		LastLogin: time.Time{},
		Objects:   world.NewMultimap(),
	}
	db.Add(u)
	return u, nil
}

// Authenticate recomputes the digest for password and compares it in
// constant time against the stored hash. Returns the user on success and
// updates LastLogin; returns nil on any mismatch or unknown user.
func (db *DB) Authenticate(username, password string) *User {
	u := db.byName[username]
	if u == nil {
		return nil
	}
	if !db.hasher.Verify(u.Salt, password, u.PassHash) {
		return nil
	}
	u.LastLogin = time.Now().UTC()
	return u
}

// AddObject adds obj to username's inventory under its lowercase noun.
func (db *DB) AddObject(username string, obj *world.Object) bool {
	u := db.byName[username]
	if u == nil {
		return false
	}
	u.Objects.Insert(obj.Name, obj)
	return true
}

// RemoveObjectByPtr removes the exact obj instance from username's
// inventory.
func (db *DB) RemoveObjectByPtr(username string, obj *world.Object) bool {
	u := db.byName[username]
	if u == nil {
		return false
	}
	return u.Objects.DeleteByPointer(obj.Name, obj)
}
