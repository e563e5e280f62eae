package receipt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	receiptsBucket = []byte("receipts")
	// createdBucket indexes receipt IDs by creation time so listings can
	// walk newest first without decoding every record.
	createdBucket = []byte("receipts_by_created")
)

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt inserts or replaces a receipt
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns receipts newest first, skipping the first skip
	// entries. A limit of zero or less returns everything after skip.
	ListReceipts(skip, limit int) ([]*Receipt, error)

	// DeleteReceipt removes a receipt
	DeleteReceipt(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens or creates the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{receiptsBucket, createdBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// createdKey orders by creation time, then ID
func createdKey(r *Receipt) []byte {
	key := make([]byte, 8, 8+len(r.ID))
	binary.BigEndian.PutUint64(key, uint64(r.CreatedAt.UnixNano()))
	return append(key, r.ID...)
}

func decodeReceipt(data []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshaling receipt: %w", err)
	}
	return &r, nil
}

// SaveReceipt inserts or replaces a receipt
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		receipts := tx.Bucket(receiptsBucket)
		index := tx.Bucket(createdBucket)

		if existing := receipts.Get([]byte(receipt.ID)); existing != nil {
			old, err := decodeReceipt(existing)
			if err != nil {
				return err
			}
			if err := index.Delete(createdKey(old)); err != nil {
				return fmt.Errorf("removing index entry: %w", err)
			}
		}

		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		if err := receipts.Put([]byte(receipt.ID), data); err != nil {
			return err
		}
		return index.Put(createdKey(receipt), []byte(receipt.ID))
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(receiptsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var err error
		receipt, err = decodeReceipt(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns receipts newest first
func (b *BoltDB) ListReceipts(skip, limit int) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(receiptsBucket)
		c := tx.Bucket(createdBucket).Cursor()

		seen := 0
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if seen < skip {
				seen++
				continue
			}
			if limit > 0 && len(receipts) >= limit {
				break
			}
			data := bucket.Get(id)
			if data == nil {
				return fmt.Errorf("index references missing receipt %s", id)
			}
			r, err := decodeReceipt(data)
			if err != nil {
				return err
			}
			receipts = append(receipts, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		receipts := tx.Bucket(receiptsBucket)
		data := receipts.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		r, err := decodeReceipt(data)
		if err != nil {
			return err
		}
		if err := tx.Bucket(createdBucket).Delete(createdKey(r)); err != nil {
			return err
		}
		return receipts.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
