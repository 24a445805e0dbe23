// Package program holds the jasm instruction set, binary images, and tools that produce
// or inspect them.
package program

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/colorfulnotion/jasm/common"
	"github.com/colorfulnotion/jasm/vmerrors"
)

// NoInput marks an image without a patchable input literal.
const NoInput = -1

// Image is a loaded byte buffer of encoded instructions plus its entry offset.
// The buffer is owned by the Image; only the input literal changes after Load.
type Image struct {
	code        []byte
	entry       int
	inputOffset int
	hash        common.Hash
}

// Load copies code into a new Image.
func Load(code []byte, entry int) (*Image, error) {
	if len(code) == 0 {
		return nil, vmerrors.ErrEmptyImage
	}
	if entry < 0 || entry >= len(code) {
		return nil, fmt.Errorf("entry %d, size %d: %w", entry, len(code), vmerrors.ErrEntryOutOfRange)
	}
	img := &Image{
		code:        append([]byte(nil), code...),
		entry:       entry,
		inputOffset: NoInput,
	}
	img.hash = common.Blake2HashParts(img.code, common.Uint32ToBytes(uint32(entry)))
	return img, nil
}

func (img *Image) Entry() int { return img.entry }
func (img *Image) Size() int  { return len(img.code) }

// Code exposes the instruction bytes. Callers must not modify them.
func (img *Image) Code() []byte { return img.code }

// Hash identifies the image as loaded, before any input literal is patched.
func (img *Image) Hash() common.Hash { return img.hash }

// InputOffset returns the offset of the patchable u32 input literal, or NoInput.
func (img *Image) InputOffset() int { return img.inputOffset }

// SetInputOffset records where the input literal lives.
func (img *Image) SetInputOffset(offset int) error {
	if offset == NoInput {
		img.inputOffset = NoInput
		return nil
	}
	if _, err := img.span(offset, 4); err != nil {
		return err
	}
	img.inputOffset = offset
	return nil
}

// SetInputLiteral overwrites the 32-bit literal at offset.
func (img *Image) SetInputLiteral(offset int, v uint32) error {
	b, err := img.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// PatchInput writes v into the recorded input literal.
func (img *Image) PatchInput(v uint32) error {
	if img.inputOffset == NoInput {
		return vmerrors.ErrNoInputLiteral
	}
	return img.SetInputLiteral(img.inputOffset, v)
}

// PointerAt returns the bytes from offset to the end of the image.
func (img *Image) PointerAt(offset int) ([]byte, error) {
	if offset < 0 || offset >= len(img.code) {
		return nil, fmt.Errorf("offset %d, image size %d: %w", offset, len(img.code), vmerrors.ErrOutOfBounds)
	}
	return img.code[offset:], nil
}

// Clone returns an independent copy, including the current input literal.
func (img *Image) Clone() *Image {
	c := *img
	c.code = append([]byte(nil), img.code...)
	return &c
}

func (img *Image) span(offset, n int) ([]byte, error) {
	if offset < 0 || offset+n > len(img.code) {
		return nil, fmt.Errorf("%d bytes at %d, image size %d: %w", n, offset, len(img.code), vmerrors.ErrOutOfBounds)
	}
	return img.code[offset : offset+n], nil
}

// Loader produces an Image.
type Loader interface {
	Load() (*Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func() (*Image, error)

func (f LoaderFunc) Load() (*Image, error) { return f() }

// Static returns a Loader yielding a fresh copy of img on every call.
func Static(img *Image) Loader {
	return LoaderFunc(func() (*Image, error) { return img.Clone(), nil })
}

// BytesLoader loads an in-memory buffer.
type BytesLoader struct {
	Code        []byte
	Entry       int
	InputOffset int // NoInput when the image takes no input
}

func (l BytesLoader) Load() (*Image, error) {
	return loadWithInput(l.Code, l.Entry, l.InputOffset)
}

// FileLoader loads a raw instruction file from disk.
type FileLoader struct {
	Path        string
	Entry       int
	InputOffset int
}

func (l FileLoader) Load() (*Image, error) {
	code, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", l.Path, err, vmerrors.ErrLoad)
	}
	img, err := loadWithInput(code, l.Entry, l.InputOffset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	return img, nil
}

func loadWithInput(code []byte, entry, inputOffset int) (*Image, error) {
	img, err := Load(code, entry)
	if err != nil {
		return nil, err
	}
	if err := img.SetInputOffset(inputOffset); err != nil {
		return nil, err
	}
	return img, nil
}
