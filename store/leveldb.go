package store

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
)

// LevelDBStore keeps exports in a local LevelDB database. Each export is
// written together with the time it was published.
type LevelDBStore struct {
	conn *leveldb.DB
}

func NewLevelDBStore(dir string) (*LevelDBStore, error) {
	conn, err := leveldb.OpenFile(dir, nil)
	if errors.IsCorrupted(err) {
		conn, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{conn: conn}, nil
}

func exportKey(id string) []byte  { return []byte("e/" + id) }
func updatedKey(id string) []byte { return []byte("t/" + id) }

func (s *LevelDBStore) Put(_ context.Context, id string, export []byte) error {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UnixMilli()))

	b := new(leveldb.Batch)
	b.Put(exportKey(id), export)
	b.Put(updatedKey(id), ts[:])
	return s.conn.Write(b, nil)
}

func (s *LevelDBStore) Get(_ context.Context, id string) ([]byte, error) {
	export, err := s.conn.Get(exportKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return export, nil
}

// Updated returns when the export for id was last written.
func (s *LevelDBStore) Updated(id string) (time.Time, error) {
	raw, err := s.conn.Get(updatedKey(id), nil)
	if err == leveldb.ErrNotFound {
		return time.Time{}, ErrNotFound
	} else if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(raw))), nil
}

func (s *LevelDBStore) Delete(_ context.Context, id string) error {
	b := new(leveldb.Batch)
	b.Delete(exportKey(id))
	b.Delete(updatedKey(id))
	return s.conn.Write(b, nil)
}

func (s *LevelDBStore) Close() error {
	return s.conn.Close()
}
