package las

import (
	"fmt"

	"github.com/tingold/orb-tinsource/errs"
	"github.com/tingold/orb-tinsource/internal/bytereader"
)

// Well-known record ids.
const (
	GeoKeyDirectoryTag = 34735
	GeoDoubleParamsTag = 34736
	GeoAsciiParamsTag  = 34737
	OGCWKTRecordID     = 2112
)

const (
	vlrHeaderSize  = 54
	evlrHeaderSize = 60

	// maxPayloadLength bounds the VLR payloads read into memory.
	maxPayloadLength = 1 << 30
)

// VariableLengthRecord describes one VLR or EVLR. The payload is not
// buffered; Offset locates it in the file.
type VariableLengthRecord struct {
	Offset      int64
	UserID      string
	RecordID    uint16
	Length      uint64
	Description string
	Extended    bool
}

// decodeVLRs reads count VLR headers starting at the current position,
// skipping each payload.
func decodeVLRs(br *bytereader.Reader, count uint32) ([]VariableLengthRecord, error) {
	vlrs := make([]VariableLengthRecord, 0, min(count, 64))
	for i := uint32(0); i < count; i++ {
		r := fieldReader{br: br}
		r.u16() // reserved
		var v VariableLengthRecord
		v.UserID = r.ascii(16)
		v.RecordID = r.u16()
		v.Length = uint64(r.u16())
		v.Description = r.ascii(32)
		if r.err != nil {
			return nil, errs.Format(br.Name(), errs.ErrInvalidData, fmt.Sprintf("variable length record %d: %v", i, r.err))
		}

		v.Offset = br.Position()
		if err := checkPayload(br, v, i); err != nil {
			return nil, err
		}
		if err := br.Skip(int64(v.Length)); err != nil {
			return nil, err
		}
		vlrs = append(vlrs, v)
	}

	return vlrs, nil
}

// decodeEVLRs reads the extended records of a LAS 1.4 file.
func decodeEVLRs(br *bytereader.Reader, offset int64, count uint32) ([]VariableLengthRecord, error) {
	if count == 0 || offset <= 0 {
		return nil, nil
	}
	if err := br.Seek(offset); err != nil {
		return nil, err
	}

	vlrs := make([]VariableLengthRecord, 0, min(count, 64))
	for i := uint32(0); i < count; i++ {
		r := fieldReader{br: br}
		r.u16()
		var v VariableLengthRecord
		v.UserID = r.ascii(16)
		v.RecordID = r.u16()
		v.Length = r.u64()
		v.Description = r.ascii(32)
		v.Extended = true
		if r.err != nil {
			return nil, errs.Format(br.Name(), errs.ErrInvalidData, fmt.Sprintf("extended variable length record %d: %v", i, r.err))
		}

		v.Offset = br.Position()
		if err := checkPayload(br, v, i); err != nil {
			return nil, err
		}
		if i+1 < count {
			if err := br.Skip(int64(v.Length)); err != nil {
				return nil, err
			}
		}
		vlrs = append(vlrs, v)
	}

	return vlrs, nil
}

// checkPayload rejects a record whose payload runs past the end of a file of
// known size.
func checkPayload(br *bytereader.Reader, v VariableLengthRecord, i uint32) error {
	size := br.Size()
	if size <= 0 || (v.Offset <= size && v.Length <= uint64(size-v.Offset)) {
		return nil
	}
	kind := "variable length record"
	if v.Extended {
		kind = "extended variable length record"
	}
	return errs.Format(br.Name(), errs.ErrInvalidData,
		fmt.Sprintf("%s %d: payload of %d bytes exceeds file size %d", kind, i, v.Length, size))
}

// readPayload reads the payload of v into memory.
func readPayload(br *bytereader.Reader, v VariableLengthRecord) ([]byte, error) {
	if v.Length > maxPayloadLength {
		return nil, errs.Format(br.Name(), errs.ErrInvalidData,
			fmt.Sprintf("record %d: payload of %d bytes", v.RecordID, v.Length))
	}
	if err := br.Seek(v.Offset); err != nil {
		return nil, err
	}
	b := make([]byte, v.Length)
	if err := br.ReadFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

// findVLR returns the first record with the given id.
func findVLR(vlrs []VariableLengthRecord, recordID uint16) (VariableLengthRecord, bool) {
	for _, v := range vlrs {
		if v.RecordID == recordID {
			return v, true
		}
	}
	return VariableLengthRecord{}, false
}
