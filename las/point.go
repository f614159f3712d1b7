package las

// PointRecord is a caller-owned point that ReadPoint overwrites in place.
// Its contents are valid until the next ReadPoint call that receives it.
type PointRecord struct {
	X, Y, Z float64

	Intensity       uint16
	ReturnNumber    uint8
	NumberOfReturns uint8
	ScanDirection   bool
	EdgeOfFlight    bool

	Classification uint8
	Synthetic      bool
	KeyPoint       bool
	Withheld       bool
	Overlap        bool
	ScannerChannel uint8

	// ScanAngle is in degrees.
	ScanAngle     float64
	UserData      uint8
	PointSourceID uint16

	GPSTime    float64
	HasGPSTime bool
}

// pointLayout is the record encoding, fixed when the header is parsed.
type pointLayout uint8

const (
	layoutUnsupported pointLayout = iota
	// layoutLegacy covers formats 0-5: 3-bit return fields and a 5-bit class.
	layoutLegacy
	// layoutLegacyGPS is layoutLegacy followed by GPS time (formats 1, 3, 4, 5).
	layoutLegacyGPS
	// layoutExtended covers formats 6-10: 4-bit return fields, a flag byte
	// and a full classification byte, always followed by GPS time.
	layoutExtended
)

const extendedScanAngleUnit = 0.006

func layoutFor(format uint8) pointLayout {
	switch format {
	case 0, 2:
		return layoutLegacy
	case 1, 3, 4, 5:
		return layoutLegacyGPS
	case 6, 7, 8, 9, 10:
		return layoutExtended
	default:
		return layoutUnsupported
	}
}

// minRecordLength is the number of bytes decodePoint consumes.
func (l pointLayout) minRecordLength() int {
	switch l {
	case layoutLegacy:
		return 20
	case layoutLegacyGPS:
		return 28
	case layoutExtended:
		return 30
	default:
		return 0
	}
}

// decodePoint reads the fields following the scaled coordinates and the
// intensity.
func (r *Reader) decodePoint(p *PointRecord) error {
	fr := fieldReader{br: r.br}

	switch r.layout {
	case layoutLegacy, layoutLegacyGPS:
		b := fr.u8()
		p.ReturnNumber = b & 0x07
		p.NumberOfReturns = (b >> 3) & 0x07
		p.ScanDirection = b&0x40 != 0
		p.EdgeOfFlight = b&0x80 != 0

		c := fr.u8()
		p.Classification = c & 0x1f
		p.Synthetic = c&0x20 != 0
		p.KeyPoint = c&0x40 != 0
		p.Withheld = c&0x80 != 0
		p.Overlap = false
		p.ScannerChannel = 0

		p.ScanAngle = float64(int8(fr.u8()))
		p.UserData = fr.u8()
		p.PointSourceID = fr.u16()

		if r.layout == layoutLegacyGPS {
			p.GPSTime = fr.f64()
			p.HasGPSTime = true
		} else {
			p.GPSTime = 0
			p.HasGPSTime = false
		}

	case layoutExtended:
		b := fr.u8()
		p.ReturnNumber = b & 0x0f
		p.NumberOfReturns = (b >> 4) & 0x0f

		f := fr.u8()
		p.Synthetic = f&0x01 != 0
		p.KeyPoint = f&0x02 != 0
		p.Withheld = f&0x04 != 0
		p.Overlap = f&0x08 != 0
		p.ScannerChannel = (f >> 4) & 0x03
		p.ScanDirection = f&0x40 != 0
		p.EdgeOfFlight = f&0x80 != 0

		p.Classification = fr.u8()
		p.UserData = fr.u8()
		p.ScanAngle = float64(int16(fr.u16())) * extendedScanAngleUnit
		p.PointSourceID = fr.u16()
		p.GPSTime = fr.f64()
		p.HasGPSTime = true
	}

	return fr.err
}
