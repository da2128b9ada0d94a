package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Artifact suffixes. A store saved at prefix P lives in P.index and P.json.
const (
	IndexSuffix = ".index"
	TextsSuffix = ".json"
)

// Save writes the index to path+".index" and the texts, as a JSON array,
// to path+".json", creating the parent directory if needed.
//
// Both files are first written to temporaries in the same directory and
// then renamed over the old pair, so a crash never leaves a truncated file.
// A crash between the two renames can leave a new index beside old texts;
// Load reports that as ErrConsistencyFault.
func (s *Store) Save(path string) error {
	if err := s.ensureIndex(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	blob, err := s.idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: encode index: %w", ErrPersistenceFailure, err)
	}

	texts := s.texts
	if texts == nil {
		texts = []string{}
	}
	textsJSON, err := json.Marshal(texts)
	if err != nil {
		return fmt.Errorf("%w: encode texts: %w", ErrPersistenceFailure, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create directory: %w", ErrPersistenceFailure, err)
		}
	}

	indexTmp, err := writeTemp(path+IndexSuffix, blob)
	if err != nil {
		return err
	}
	textsTmp, err := writeTemp(path+TextsSuffix, textsJSON)
	if err != nil {
		os.Remove(indexTmp)
		return err
	}

	if err := os.Rename(indexTmp, path+IndexSuffix); err != nil {
		os.Remove(indexTmp)
		os.Remove(textsTmp)
		return fmt.Errorf("%w: replace index: %w", ErrPersistenceFailure, err)
	}
	if err := os.Rename(textsTmp, path+TextsSuffix); err != nil {
		os.Remove(textsTmp)
		return fmt.Errorf("%w: replace texts: %w", ErrPersistenceFailure, err)
	}

	s.path = path
	return nil
}

// Load reconstructs a store saved at path. Vectors come from the index
// file, texts from the JSON file.
//
// If either file is missing an empty store bound to path is returned; this
// is the normal first-use case. A pair that exists but cannot be parsed is
// ErrPersistenceFailure, and a pair whose counts disagree is
// ErrConsistencyFault. Neither falls back to an empty store.
//
// The capacity comes from opts, not from disk. If the pair holds more
// fragments than that, the oldest are dropped.
func Load(path string, embedder Embedder, opts ...Option) (*Store, error) {
	s := NewStore(embedder, opts...)
	s.path = path

	indexPath, textsPath := path+IndexSuffix, path+TextsSuffix
	indexExists, err := fileExists(indexPath)
	if err != nil {
		return nil, err
	}
	textsExists, err := fileExists(textsPath)
	if err != nil {
		return nil, err
	}
	if !indexExists || !textsExists {
		return s, nil
	}

	rawTexts, err := os.ReadFile(textsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read texts: %w", ErrPersistenceFailure, err)
	}
	var texts []string
	if err := json.Unmarshal(rawTexts, &texts); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrPersistenceFailure, textsPath, err)
	}

	rawIndex, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read index: %w", ErrPersistenceFailure, err)
	}
	idx, err := s.builder.Unmarshal(rawIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrPersistenceFailure, indexPath, err)
	}

	if idx.Len() != len(texts) {
		return nil, fmt.Errorf("%w: %s has %d vectors, %s has %d texts",
			ErrConsistencyFault, indexPath, idx.Len(), textsPath, len(texts))
	}

	s.texts = texts
	s.embeddings = idx.Vectors()
	s.dim = idx.Dimensions()
	s.idx = idx

	if over := len(s.texts) - s.maxSize; over > 0 {
		log.Printf("[MEMORY] %s holds %d fragments, dropping %d oldest to fit max size %d",
			path, len(s.texts), over, s.maxSize)
		s.evictOldest(over)
		s.dirty = true
	}
	return s, nil
}

// writeTemp writes data to a uniquely named sibling of target and returns
// its path.
func writeTemp(target string, data []byte) (string, error) {
	tmp := target + ".tmp-" + uuid.NewString()

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrPersistenceFailure, tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("%w: write %s: %w", ErrPersistenceFailure, tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("%w: sync %s: %w", ErrPersistenceFailure, tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: close %s: %w", ErrPersistenceFailure, tmp, err)
	}
	return tmp, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: stat %s: %w", ErrPersistenceFailure, path, err)
	}
}
