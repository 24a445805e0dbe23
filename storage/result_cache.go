package storage

import (
	"fmt"

	"github.com/colorfulnotion/jasm/common"
	"github.com/colorfulnotion/jasm/jvm"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/log"
	"github.com/colorfulnotion/jasm/vmerrors"
	"github.com/fxamacker/cbor/v2"
)

// Key prefixes. Run keys and image hashes are both 32 bytes.
var (
	resultPrefix = []byte("r/")
	imagePrefix  = []byte("i/")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("storage: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type resultRecord struct {
	Kind uint8  `cbor:"1,keyasint"`
	Raw  uint64 `cbor:"2,keyasint"`
}

type imageRecord struct {
	Code        []byte `cbor:"1,keyasint"`
	Entry       int    `cbor:"2,keyasint"`
	InputOffset int    `cbor:"3,keyasint"`
}

// ResultStore persists run results and the images they came from.
// It satisfies jvm.ResultCache.
type ResultStore struct {
	ps *PersistenceStore
}

var _ jvm.ResultCache = (*ResultStore)(nil)

// OpenResultStore opens a LevelDB-backed store; an empty path keeps it in memory.
func OpenResultStore(path string) (*ResultStore, error) {
	ps, err := NewPersistenceStore(path)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CacheMod, "result store opened", "path", path)
	return &ResultStore{ps: ps}, nil
}

func NewResultStore(ps *PersistenceStore) *ResultStore { return &ResultStore{ps: ps} }

func prefixed(prefix []byte, h common.Hash) []byte {
	return append(append([]byte{}, prefix...), h.Bytes()...)
}

func (s *ResultStore) Get(key common.Hash) (jvm.ReturnValue, bool, error) {
	data, ok, err := s.ps.Get(prefixed(resultPrefix, key))
	if err != nil || !ok {
		return jvm.ReturnValue{}, false, err
	}
	var rec resultRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return jvm.ReturnValue{}, false, fmt.Errorf("storage: result %s: %w", key.String_short(), err)
	}
	return jvm.ReturnValue{Kind: jvm.ValueKind(rec.Kind), Raw: rec.Raw}, true, nil
}

func (s *ResultStore) Put(key common.Hash, v jvm.ReturnValue) error {
	data, err := cborEncMode.Marshal(resultRecord{Kind: uint8(v.Kind), Raw: v.Raw})
	if err != nil {
		return err
	}
	return s.ps.Put(prefixed(resultPrefix, key), data)
}

// Len counts cached results.
func (s *ResultStore) Len() (int, error) {
	kvs, err := s.ps.GetWithPrefix(resultPrefix)
	return len(kvs), err
}

// Clear drops every cached result and keeps stored images.
func (s *ResultStore) Clear() (int, error) {
	return s.ps.DeleteWithPrefix(resultPrefix)
}

// PutImage stores the image under its hash. Store images before
// patching input, otherwise Image reports a hash mismatch.
func (s *ResultStore) PutImage(img *program.Image) error {
	data, err := cborEncMode.Marshal(imageRecord{Code: img.Code(), Entry: img.Entry(), InputOffset: img.InputOffset()})
	if err != nil {
		return err
	}
	return s.ps.Put(prefixed(imagePrefix, img.Hash()), data)
}

// Image loads a stored image by hash.
func (s *ResultStore) Image(h common.Hash) (*program.Image, error) {
	raw, ok, err := s.ps.Get(prefixed(imagePrefix, h))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("image %s not stored: %w", h.String_short(), vmerrors.ErrLoad)
	}
	var rec imageRecord
	if err := cbor.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("image %s: %v: %w", h.String_short(), err, vmerrors.ErrLoad)
	}
	img, err := program.BytesLoader{Code: rec.Code, Entry: rec.Entry, InputOffset: rec.InputOffset}.Load()
	if err != nil {
		return nil, err
	}
	if img.Hash() != h {
		return nil, fmt.Errorf("image %s stored with hash %s: %w", h.String_short(), img.Hash().String_short(), vmerrors.ErrLoad)
	}
	return img, nil
}

// Images lists the hashes of stored images in key order.
func (s *ResultStore) Images() ([]common.Hash, error) {
	kvs, err := s.ps.GetWithPrefix(imagePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]common.Hash, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, common.BytesToHash(kv[0][len(imagePrefix):]))
	}
	return out, nil
}

// Loader returns a program.Loader reading image h from the store.
func (s *ResultStore) Loader(h common.Hash) program.Loader {
	return program.LoaderFunc(func() (*program.Image, error) { return s.Image(h) })
}

func (s *ResultStore) Close() error { return s.ps.Close() }
