package rpcpipe

import (
	"errors"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/syndtr/goleveldb/leveldb"
)

// Store is the persistent, content-addressed response cache described in
// the persistent response cache: one directory per network, opened lazily and kept open for the life
// of the process.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (creating if necessary) the KV store for network at
// <baseDir>/<network>/.
func OpenStore(baseDir, network string) (*Store, error) {
	dir := filepath.Join(baseDir, network)
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, &DBError{Network: network, Err: err}
	}
	return &Store{db: db}, nil
}

// Get returns the value for key, or ok=false on a miss. Any read error
// (including corruption) is treated as a miss.
func (s *Store) Get(key []byte) (value []byte, ok bool) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			log.Warn("rpcpipe: cache read failed, treating as miss", "err", err)
		}
		return nil, false
	}
	return v, true
}

// Put stores value under key. Failures are logged and swallowed; the caller
// always still has its response to return.
func (s *Store) Put(key, value []byte) {
	if err := s.db.Put(key, value, nil); err != nil {
		log.Warn("rpcpipe: cache write failed, dropping", "err", err)
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
