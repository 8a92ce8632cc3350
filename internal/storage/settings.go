package storage

import (
	"strconv"

	bolt "go.etcd.io/bbolt"
)

// Int64 reads an integer setting from the metadata bucket.
func (s *Store) Int64(key string) (int64, bool) {
	var (
		value int64
		found bool
	)
	_ = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metaBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		v, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return nil
		}
		value, found = v, true
		return nil
	})
	return value, found
}

func (s *Store) SetInt64(key string, value int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(key), []byte(strconv.FormatInt(value, 10)))
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Delete([]byte(key))
	})
}
