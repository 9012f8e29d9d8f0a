package db

import (
	"fmt"

	"go.etcd.io/bbolt"
)

type Bucket struct {
	db   *bbolt.DB
	Name []byte
}

func (c *Client) Bucket(name string) (*Bucket, error) {
	if err := c.BoltDB.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	}); err != nil {
		return nil, err
	}
	return &Bucket{
		db:   c.BoltDB,
		Name: []byte(name),
	}, nil
}

func (b *Bucket) Update(fn func(bucket *bbolt.Bucket) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.Name)
		if bucket == nil {
			return fmt.Errorf("bucket %q not found", b.Name)
		}
		return fn(bucket)
	})
}

func (b *Bucket) View(fn func(bucket *bbolt.Bucket) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.Name)
		if bucket == nil {
			return fmt.Errorf("bucket %q not found", b.Name)
		}
		return fn(bucket)
	})
}

func (b *Bucket) Put(key, value []byte) error {
	return b.Update(func(bucket *bbolt.Bucket) error {
		return bucket.Put(key, value)
	})
}

// GetFunc retrieves the value for the given key and passes it to the provided
// function, avoiding an extra copy when the caller only reads the value.
func (b *Bucket) GetFunc(key []byte, fn func([]byte) error) error {
	return b.View(func(bucket *bbolt.Bucket) error {
		v := bucket.Get(key)
		if v != nil {
			return fn(v)
		}
		return nil
	})
}

func (b *Bucket) Delete(key []byte) error {
	return b.Update(func(bucket *bbolt.Bucket) error {
		return bucket.Delete(key)
	})
}

func (b *Bucket) ForEach(fn func(k, v []byte) error) error {
	return b.View(func(bucket *bbolt.Bucket) error {
		return bucket.ForEach(fn)
	})
}
