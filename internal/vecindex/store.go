package vecindex

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"go.etcd.io/bbolt"
)

// Artifact layout: one bolt file with paired buckets. Vectors and ids are
// keyed by position so they can only be read back together; meta pins the
// dimension and count the pair was written with.
var (
	bucketVectors = []byte("vectors")
	bucketIDs     = []byte("ids")
	bucketMeta    = []byte("meta")
	keyDim        = []byte("dim")
	keyCount      = []byte("count")
)

// SaveArtifact persists the index at path. The artifact is written to a
// temporary file and renamed into place, so concurrent readers observe either
// the old pair or the new pair, never a half-written one.
func SaveArtifact(path string, idx *Index) error {
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale temp artifact: %w", err)
	}

	db, err := bbolt.Open(tmp, 0o600, nil)
	if err != nil {
		return fmt.Errorf("open temp artifact: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}

		vectors, err := tx.CreateBucketIfNotExists(bucketVectors)
		if err != nil {
			return fmt.Errorf("create vectors bucket: %w", err)
		}

		ids, err := tx.CreateBucketIfNotExists(bucketIDs)
		if err != nil {
			return fmt.Errorf("create ids bucket: %w", err)
		}

		if err := meta.Put(keyDim, itob(uint64(idx.dim))); err != nil {
			return fmt.Errorf("put dim: %w", err)
		}

		if err := meta.Put(keyCount, itob(uint64(len(idx.ids)))); err != nil {
			return fmt.Errorf("put count: %w", err)
		}

		for i, item := range idx.items() {
			pos := itob(uint64(i))
			if err := vectors.Put(pos, encodeVector(item.Embedding)); err != nil {
				return fmt.Errorf("put vector %d: %w", i, err)
			}

			if err := ids.Put(pos, []byte(item.ID)); err != nil {
				return fmt.Errorf("put id %d: %w", i, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()

		return err
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("swap artifact into place: %w", err)
	}

	return nil
}

// LoadArtifact reads a persisted index from path. Any inconsistency between
// the paired buckets (missing vector, missing id, dimension drift) is an
// error; the caller treats it as corrupt and rebuilds from source.
func LoadArtifact(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer db.Close()

	var idx *Index

	err = db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		vectors := tx.Bucket(bucketVectors)
		ids := tx.Bucket(bucketIDs)

		if meta == nil || vectors == nil || ids == nil {
			return fmt.Errorf("artifact missing buckets")
		}

		dimBytes := meta.Get(keyDim)
		countBytes := meta.Get(keyCount)

		if dimBytes == nil || countBytes == nil {
			return fmt.Errorf("artifact missing metadata")
		}

		dim := int(btoi(dimBytes))
		count := int(btoi(countBytes))

		idx = &Index{
			dim:     dim,
			ids:     make([]string, 0, count),
			vectors: make([][]float32, 0, count),
		}

		for i := 0; i < count; i++ {
			pos := itob(uint64(i))

			idBytes := ids.Get(pos)
			vecBytes := vectors.Get(pos)

			if idBytes == nil || vecBytes == nil {
				return fmt.Errorf("artifact entry %d incomplete", i)
			}

			vec, err := decodeVector(vecBytes)
			if err != nil {
				return fmt.Errorf("artifact entry %d: %w", i, err)
			}

			if len(vec) != dim {
				return fmt.Errorf("artifact entry %d has dimension %d, expected %d", i, len(vec), dim)
			}

			idx.ids = append(idx.ids, string(idBytes))
			idx.vectors = append(idx.vectors, vec)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return idx, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}

	return binary.BigEndian.Uint64(b)
}

func encodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}

	return out
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(b))
	}

	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}

	return out, nil
}
