// Package playready decodes the PlayReady Object carried in a pssh box.
//
// The object is little-endian: a u32 total length, a u16 record count, then
// records of (u16 type, u16 length, payload). Rights management records hold
// a WRM header, UTF-16LE XML rooted at WRMHEADER.
package playready

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/encoding/unicode"
)

// DefaultXMLNS is reported when a WRMHEADER carries no xmlns attribute.
const DefaultXMLNS = "http://schemas.microsoft.com/DRM/2007/03/PlayReadyHeader"

// RecordType is the type of a PlayReady Object record.
type RecordType uint16

const (
	RightsManagement     RecordType = 1
	Reserved             RecordType = 2
	EmbeddedLicenseStore RecordType = 3
)

func (t RecordType) String() string {
	switch t {
	case RightsManagement:
		return "RightsManagement"
	case Reserved:
		return "Reserved"
	case EmbeddedLicenseStore:
		return "EmbeddedLicenseStore"
	}
	return "Unknown(" + strconv.Itoa(int(t)) + ")"
}

var (
	ErrUnexpectedEOF = errors.New("unexpected end of PlayReady pssh XML")
	ErrNoData        = errors.New("no DATA in PlayReady pssh")
	ErrNoVersion     = errors.New("no version in PlayReady pssh")
	ErrOddLength     = errors.New("PlayReady record is not valid UTF-16")
)

// LengthError reports a header length that disagrees with the buffer.
type LengthError struct {
	Expected, Actual uint32
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("header length %d different from buffer length %d", e.Expected, e.Actual)
}

// RecordTypeError reports a record of a type that cannot be described.
type RecordTypeError struct {
	Type RecordType
}

func (e *RecordTypeError) Error() string {
	return fmt.Sprintf("can't parse PlayReady record of type %d", uint16(e.Type))
}

// RecordCountError reports a record count that disagrees with the records
// present.
type RecordCountError struct {
	Declared, Found int
}

func (e *RecordCountError) Error() string {
	if e.Found < e.Declared {
		return fmt.Sprintf("record count %d but only %d records present", e.Declared, e.Found)
	}
	return fmt.Sprintf("record count %d but %d records present", e.Declared, e.Found)
}

// Object is a decoded PlayReady Object.
type Object struct {
	Records []Record
}

// Record is one entry of an Object. Header is nil for records whose payload
// is not a WRM header.
type Record struct {
	Type   RecordType
	Header *WRMHeader
}

type WRMHeader struct {
	XMLNS   string
	Version string
	Data    WRMData
}

type WRMData struct {
	Kids             []KID
	ProtectInfo      *ProtectInfo
	Checksum         string
	LAURL            string
	LUIURL           string
	DSID             string
	CustomAttributes string
	DecryptorSetup   string
}

type KID struct {
	Value    string
	AlgID    string
	Checksum string
}

type ProtectInfo struct {
	KeyLen *uint32
	AlgID  string
	Kids   []KID
}

var le = binary.LittleEndian

// Parse decodes a PlayReady Object.
func Parse(buf []byte) (*Object, error) {
	if len(buf) < 6 {
		return nil, io.ErrUnexpectedEOF
	}
	if n := le.Uint32(buf); n != uint32(len(buf)) {
		return nil, &LengthError{Expected: n, Actual: uint32(len(buf))}
	}
	count := int(le.Uint16(buf[4:]))
	pos := 6

	obj := &Object{Records: make([]Record, 0, count)}
	for i := range count {
		if len(buf)-pos < 4 {
			return nil, &RecordCountError{Declared: count, Found: i}
		}
		typ := RecordType(le.Uint16(buf[pos:]))
		n := int(le.Uint16(buf[pos+2:]))
		pos += 4
		if len(buf)-pos < n {
			return nil, fmt.Errorf("record %d: %w", i+1, io.ErrUnexpectedEOF)
		}
		payload := buf[pos : pos+n]
		pos += n

		switch typ {
		case RightsManagement:
			h, err := parseHeader(payload)
			if err != nil {
				return nil, err
			}
			obj.Records = append(obj.Records, Record{Type: typ, Header: h})
		case Reserved, EmbeddedLicenseStore:
			obj.Records = append(obj.Records, Record{Type: typ})
		default:
			return nil, &RecordTypeError{Type: typ}
		}
	}
	if pos != len(buf) {
		return nil, &RecordCountError{Declared: count, Found: count + countRecords(buf[pos:])}
	}
	return obj, nil
}

// countRecords counts the record headers in b, including a final record
// whose payload runs past the end.
func countRecords(b []byte) int {
	n := 0
	for len(b) > 0 {
		n++
		if len(b) < 4 {
			break
		}
		size := 4 + int(le.Uint16(b[2:]))
		if size > len(b) {
			break
		}
		b = b[size:]
	}
	return n
}

func decodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", ErrOddLength
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
