// Package modelstore persists the trained artifact as two files, one for
// the forest and one for the scaler. Files are written with encoding/gob
// and fall back to JSON when gob fails; Load accepts either encoding.
package modelstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/scoring"
)

const (
	// ModelFile holds the forest.
	ModelFile = "station_recommendation_model.bin"
	// ScalerFile holds the scaler.
	ScalerFile = "feature_scaler.bin"
)

var (
	// ErrMissingArtifact means no usable artifact pair exists.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrPersistence means both encodings failed to write.
	ErrPersistence = errors.New("persistence failure")
)

type codec struct {
	name   string
	encode func(v any) ([]byte, error)
	decode func(data []byte, v any) error
}

var (
	gobCodec = codec{
		name: "gob",
		encode: func(v any) ([]byte, error) {
			var buf bytes.Buffer
			err := gob.NewEncoder(&buf).Encode(v)
			return buf.Bytes(), err
		},
		decode: func(data []byte, v any) error {
			return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
		},
	}
	jsonCodec = codec{name: "json", encode: json.Marshal, decode: json.Unmarshal}
)

// modelFile is the on-disk form of the forest file. The scaler file has the
// same envelope so a file swapped with the other one is rejected. Pair is
// written to both files by one Save and must match on Load.
type modelFile struct {
	Kind          string
	LayoutVersion int
	Pair          string
	TrainedAt     time.Time
	Samples       int
	Forest        *scoring.Forest
}

type scalerFile struct {
	Kind          string
	LayoutVersion int
	Pair          string
	Scaler        *scoring.StandardScaler
}

const (
	kindModel  = "forest"
	kindScaler = "scaler"
)

// Store is a file-backed artifact store.
type Store struct {
	dir    string
	layout int
	log    logger.Logger
	codecs []codec
}

// New returns a store rooted at dir that only loads artifacts built for
// feature layout version layout.
func New(dir string, layout int, log logger.Logger) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir, layout: layout, log: logger.OrNop(log), codecs: []codec{gobCodec, jsonCodec}}
}

// Dir returns the directory holding the artifact files.
func (s *Store) Dir() string { return s.dir }

// Save writes both files. Each file goes to a temporary name first and is
// renamed into place, the scaler before the model.
func (s *Store) Save(a *scoring.Artifact) error {
	if a == nil || !a.Model.Fitted() || !a.Scaler.Fitted() {
		return fmt.Errorf("%w: artifact not fitted", ErrPersistence)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	pair := uuid.NewString()
	sf := scalerFile{Kind: kindScaler, LayoutVersion: a.LayoutVersion, Pair: pair, Scaler: a.Scaler}
	if err := s.write(ScalerFile, sf); err != nil {
		return err
	}
	mf := modelFile{Kind: kindModel, LayoutVersion: a.LayoutVersion, Pair: pair, TrainedAt: a.TrainedAt, Samples: a.Samples, Forest: a.Model}
	return s.write(ModelFile, mf)
}

func (s *Store) write(name string, v any) error {
	var errs []error
	for _, c := range s.codecs {
		data, err := c.encode(v)
		if err != nil {
			s.log.Warnf("encode %s with %s: %v", name, c.name, err)
			errs = append(errs, err)
			continue
		}
		if err := writeAtomic(filepath.Join(s.dir, name), data); err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, name, errors.Join(errs...))
}

// Load reads both files. Any problem, including a missing file, a file
// that neither codec can decode, a layout mismatch or a scaler left over
// from another save, is reported as ErrMissingArtifact.
func (s *Store) Load() (*scoring.Artifact, error) {
	var mf modelFile
	if err := s.read(ModelFile, &mf); err != nil {
		return nil, err
	}
	var sf scalerFile
	if err := s.read(ScalerFile, &sf); err != nil {
		return nil, err
	}
	if mf.Kind != kindModel || sf.Kind != kindScaler {
		return nil, fmt.Errorf("%w: unexpected file contents", ErrMissingArtifact)
	}
	if mf.LayoutVersion != s.layout || sf.LayoutVersion != s.layout {
		return nil, fmt.Errorf("%w: layout version %d/%d, want %d", ErrMissingArtifact, mf.LayoutVersion, sf.LayoutVersion, s.layout)
	}
	if mf.Pair == "" || mf.Pair != sf.Pair {
		return nil, fmt.Errorf("%w: model and scaler come from different saves", ErrMissingArtifact)
	}
	a, err := scoring.NewArtifact(mf.Forest, sf.Scaler, mf.LayoutVersion, mf.TrainedAt, mf.Samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingArtifact, err)
	}
	return a, nil
}

func (s *Store) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s not found", ErrMissingArtifact, name)
		}
		return fmt.Errorf("%w: %v", ErrMissingArtifact, err)
	}
	for _, c := range s.codecs {
		err := c.decode(data, v)
		if err == nil {
			return nil
		}
		s.log.Debugf("decode %s with %s: %v", name, c.name, err)
	}
	return fmt.Errorf("%w: %s is unreadable", ErrMissingArtifact, name)
}

// Exists reports whether both files are present. It does not decode them.
func (s *Store) Exists() bool {
	for _, n := range []string{ModelFile, ScalerFile} {
		if _, err := os.Stat(filepath.Join(s.dir, n)); err != nil {
			return false
		}
	}
	return true
}

// Remove deletes both files. Missing files are not an error.
func (s *Store) Remove() error {
	var errs []error
	for _, n := range []string{ModelFile, ScalerFile} {
		if err := os.Remove(filepath.Join(s.dir, n)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
