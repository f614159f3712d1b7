package shapefile

import (
	"fmt"
	"io"

	"github.com/tingold/orb-tinsource/errs"
	"github.com/tingold/orb-tinsource/internal/bytereader"
)

// Index holds the record offsets of a .shx file. It is read fully on open
// and holds no file handle.
type Index struct {
	header  Header
	offsets []int64
	lengths []int64
}

// OpenIndex reads a .shx file.
func OpenIndex(path string) (*Index, error) {
	br, err := bytereader.Open(path)
	if err != nil {
		return nil, err
	}
	defer br.Close()

	return readIndex(br)
}

// ReadIndex reads a .shx index from src.
func ReadIndex(name string, src io.ReadSeeker, size int64) (*Index, error) {
	br := bytereader.New(name, src, size)
	defer br.Close()

	return readIndex(br)
}

func readIndex(br *bytereader.Reader) (*Index, error) {
	h, err := decodeHeader(br)
	if err != nil {
		return nil, err
	}
	n := (h.FileLength - mainHeaderSize) / 8
	if n < 0 {
		return nil, errs.Format(br.Name(), errs.ErrInvalidData, fmt.Sprintf("file length %d", h.FileLength))
	}
	if size := br.Size(); size > 0 && h.FileLength > size {
		return nil, errs.Format(br.Name(), errs.ErrInvalidData, fmt.Sprintf("file length %d exceeds size %d", h.FileLength, size))
	}

	idx := &Index{header: h, offsets: make([]int64, 0, min(n, 4096)), lengths: make([]int64, 0, min(n, 4096))}
	for i := int64(0); i < n; i++ {
		off, err := br.ReadI32BE()
		if err != nil {
			return nil, errs.Record(br.Name(), i, errs.ErrInvalidData, "truncated index")
		}
		words, err := br.ReadI32BE()
		if err != nil {
			return nil, errs.Record(br.Name(), i, errs.ErrInvalidData, "truncated index")
		}
		idx.offsets = append(idx.offsets, 2*int64(off))
		idx.lengths = append(idx.lengths, 2*int64(words))
	}

	return idx, nil
}

// Header returns the main header of the index file.
func (x *Index) Header() Header { return x.header }

// Len returns the number of records.
func (x *Index) Len() int { return len(x.offsets) }

// Offset returns the byte offset of record i in the .shp file.
func (x *Index) Offset(i int) (int64, bool) {
	if i < 0 || i >= len(x.offsets) {
		return 0, false
	}
	return x.offsets[i], true
}

// ContentLength returns the content length in bytes of record i, excluding
// its 8-byte record header.
func (x *Index) ContentLength(i int) (int64, bool) {
	if i < 0 || i >= len(x.lengths) {
		return 0, false
	}
	return x.lengths[i], true
}
