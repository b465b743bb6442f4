package persist

import (
	"bytes"
	"os"
	"time"

	"netcosm/internal/userdb"
)

// UserDataHooks lets a world module (de)serialize its opaque per-user
// payload into User.WorldData, the user-level analogue of ClassResolver's
// object Serialize/Deserialize hooks. Either function may be nil, in
// which case WorldData round-trips as whatever raw bytes are already there.
type UserDataHooks interface {
	SerializeUserData(u *userdb.User) []byte
	DeserializeUserData(u *userdb.User, data []byte)
}

// SaveUsers atomically persists the entire user database to path. hooks
// may be nil, meaning no world module is consulted and WorldData is
// written back verbatim.
func SaveUsers(path string, db *userdb.DB, hooks UserDataHooks) error {
	var buf bytes.Buffer
	if err := writeUint32(&buf, uint32(db.Len())); err != nil {
		return errf("save user count", err)
	}
	var saveErr error
	db.Iterate(func(u *userdb.User) bool {
		if err := saveUser(&buf, u, hooks); err != nil {
			saveErr = err
			return false
		}
		return true
	})
	if saveErr != nil {
		return errf("save user", saveErr)
	}
	return atomicWrite(path, buf.Bytes())
}

func saveUser(w *bytes.Buffer, u *userdb.User, hooks UserDataHooks) error {
	if err := writeString(w, u.Username); err != nil {
		return err
	}
	if err := writeBytes(w, u.Salt); err != nil {
		return err
	}
	if err := writeString(w, u.PassHash); err != nil {
		return err
	}
	if err := writeInt32(w, int32(u.Priv)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(u.LastLogin.Unix())); err != nil {
		return err
	}
	worldData := u.WorldData
	if hooks != nil {
		worldData = hooks.SerializeUserData(u)
	}
	if err := writeBytes(w, worldData); err != nil {
		return err
	}
	return saveMultimap(w, u.Objects)
}

// LoadUsers reads path into a fresh DB. resolver lets inventory object
// classes be re-resolved by name, matching SaveWorld/LoadWorld's contract;
// hooks, if non-nil, gets a chance to restore each user's opaque payload.
func LoadUsers(path string, resolver ClassResolver, hooks UserDataHooks) (*userdb.DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errf("read user file", err)
	}
	r := bytes.NewReader(data)

	n, err := readUint32(r)
	if err != nil {
		return nil, errf("read user count", err)
	}
	db := userdb.New()
	for i := uint32(0); i < n; i++ {
		u, err := loadUser(r, resolver, hooks)
		if err != nil {
			return nil, errf("read user", err)
		}
		db.Add(u)
	}
	return db, nil
}

func loadUser(r *bytes.Reader, resolver ClassResolver, hooks UserDataHooks) (*userdb.User, error) {
	username, err := readString(r)
	if err != nil {
		return nil, err
	}
	salt, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	passHash, err := readString(r)
	if err != nil {
		return nil, err
	}
	priv, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	lastLogin, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	worldData, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	objects, err := loadMultimap(r, resolver)
	if err != nil {
		return nil, err
	}
	u := &userdb.User{
		Username:  username,
		Salt:      salt,
		PassHash:  passHash,
		Priv:      userdb.Priv(priv),
		LastLogin: time.Unix(int64(lastLogin), 0).UTC(),
		WorldData: worldData,
		Objects:   objects,
	}
	if hooks != nil {
		hooks.DeserializeUserData(u, worldData)
	}
	return u, nil
}
