package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"typeinf/internal/domain"
)

var (
	bucketChunks     = []byte("chunks")
	bucketChunksInfo = []byte("chunks_info")
	bucketFiles      = []byte("files")
	bucketFileSrc    = []byte("file_src")
	bucketFileRepo   = []byte("file_repo")
	bucketMeta       = []byte("meta")
	keyReposSplit    = []byte("repos_split")
)

// DatasetStore persists chunked datasets in a single bolt file: one
// nested bucket per dataset name under each column bucket, with the
// repos split record at the top level.
type DatasetStore struct {
	db *bbolt.DB
}

func NewDatasetStore(path string) (*DatasetStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketChunksInfo, bucketFiles, bucketFileSrc, bucketFileRepo, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DatasetStore{db: db}, nil
}

func (s *DatasetStore) Close() error { return s.db.Close() }

type datasetMeta struct {
	NumChunks int `json:"num_chunks"`
	NumFiles  int `json:"num_files"`
}

func rowKey(i int) []byte { return []byte(fmt.Sprintf("%08d", i)) }

// SaveDataset replaces any stored dataset of the same name.
func (s *DatasetStore) SaveDataset(name string, ds *domain.ChunkedDataset) error {
	if err := ds.CheckIntegrity(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		chunks, err := resetNested(tx, bucketChunks, name)
		if err != nil {
			return err
		}
		info, err := resetNested(tx, bucketChunksInfo, name)
		if err != nil {
			return err
		}
		files, err := resetNested(tx, bucketFiles, name)
		if err != nil {
			return err
		}
		fileSrc, err := resetNested(tx, bucketFileSrc, name)
		if err != nil {
			return err
		}
		fileRepo, err := resetNested(tx, bucketFileRepo, name)
		if err != nil {
			return err
		}

		for i, row := range ds.Rows {
			data, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if err := chunks.Put(rowKey(i), data); err != nil {
				return err
			}
			data, err = json.Marshal(ds.Info[i])
			if err != nil {
				return err
			}
			if err := info.Put(rowKey(i), data); err != nil {
				return err
			}
		}
		for i, f := range ds.Files {
			if err := files.Put(rowKey(i), []byte(f)); err != nil {
				return err
			}
			if err := fileSrc.Put([]byte(f), []byte(ds.FileToSrc[f])); err != nil {
				return err
			}
			if err := fileRepo.Put([]byte(f), []byte(ds.FileToRepo[f])); err != nil {
				return err
			}
		}

		meta, err := json.Marshal(datasetMeta{NumChunks: len(ds.Rows), NumFiles: len(ds.Files)})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte(name), meta)
	})
}

// LoadDataset reads a dataset back; row/info parallelism is verified on
// the way out.
func (s *DatasetStore) LoadDataset(name string) (*domain.ChunkedDataset, error) {
	ds := &domain.ChunkedDataset{
		FileToSrc:  make(map[string]string),
		FileToRepo: make(map[string]string),
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		metaData := tx.Bucket(bucketMeta).Get([]byte(name))
		if metaData == nil {
			return fmt.Errorf("dataset not found: %s", name)
		}
		var meta datasetMeta
		if err := json.Unmarshal(metaData, &meta); err != nil {
			return err
		}

		chunks := nested(tx, bucketChunks, name)
		info := nested(tx, bucketChunksInfo, name)
		files := nested(tx, bucketFiles, name)
		fileSrc := nested(tx, bucketFileSrc, name)
		fileRepo := nested(tx, bucketFileRepo, name)
		if chunks == nil || info == nil || files == nil || fileSrc == nil || fileRepo == nil {
			return fmt.Errorf("dataset %s is missing column buckets", name)
		}

		for i := 0; i < meta.NumChunks; i++ {
			var row domain.ChunkRow
			data := chunks.Get(rowKey(i))
			if data == nil {
				return fmt.Errorf("dataset %s: missing chunk row %d", name, i)
			}
			if err := json.Unmarshal(data, &row); err != nil {
				return err
			}
			var ci domain.SrcChunkInfo
			data = info.Get(rowKey(i))
			if data == nil {
				return fmt.Errorf("dataset %s: missing chunk info %d", name, i)
			}
			if err := json.Unmarshal(data, &ci); err != nil {
				return err
			}
			ds.Rows = append(ds.Rows, row)
			ds.Info = append(ds.Info, ci)
		}
		for i := 0; i < meta.NumFiles; i++ {
			f := files.Get(rowKey(i))
			if f == nil {
				return fmt.Errorf("dataset %s: missing file %d", name, i)
			}
			path := string(f)
			ds.Files = append(ds.Files, path)
			ds.FileToSrc[path] = string(fileSrc.Get([]byte(path)))
			ds.FileToRepo[path] = string(fileRepo.Get([]byte(path)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ds.CheckIntegrity(); err != nil {
		return nil, err
	}
	return ds, nil
}

// SaveReposSplit stores the train/valid/test repo partition.
func (s *DatasetStore) SaveReposSplit(split map[string][]string) error {
	data, err := json.Marshal(split)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyReposSplit, data)
	})
}

func (s *DatasetStore) LoadReposSplit() (map[string][]string, error) {
	var split map[string][]string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyReposSplit)
		if data == nil {
			return fmt.Errorf("repos split not found")
		}
		return json.Unmarshal(data, &split)
	})
	if err != nil {
		return nil, err
	}
	return split, nil
}

func resetNested(tx *bbolt.Tx, parent []byte, name string) (*bbolt.Bucket, error) {
	p := tx.Bucket(parent)
	if p.Bucket([]byte(name)) != nil {
		if err := p.DeleteBucket([]byte(name)); err != nil {
			return nil, err
		}
	}
	return p.CreateBucket([]byte(name))
}

func nested(tx *bbolt.Tx, parent []byte, name string) *bbolt.Bucket {
	return tx.Bucket(parent).Bucket([]byte(name))
}
