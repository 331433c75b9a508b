package mp4

import (
	"errors"
	"fmt"
	"log/slog"
)

// Row is one box of a walk, in file order.
type Row struct {
	Depth      int
	Type       BoxType
	Offset     int
	Size       int
	Properties PropertySet
	// Err is set on placeholder rows for boxes that could not be described.
	Err error
}

// Walker walks a buffer of top-level boxes. The zero value is ready to use.
type Walker struct {
	Logger *slog.Logger
}

func (w *Walker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Walk is a shorthand for a zero Walker's Walk.
func Walk(buf []byte) ([]Row, error) {
	var w Walker
	return w.Walk(buf)
}

// Walk describes every box in buf. Containers are descended into; the depth
// of a row is the number of containers still open when its header is read.
// On a structural error the rows produced so far are returned along with a
// *StructuralError.
func (w *Walker) Walk(buf []byte) ([]Row, error) {
	log := w.logger()

	var rows []Row
	var ends []int // end offsets of open containers, innermost last
	pos := 0

	for pos < len(buf) {
		h, err := ReadHeader(buf, pos)
		if err != nil {
			return rows, err
		}

		for len(ends) > 0 && ends[len(ends)-1] <= pos {
			ends = ends[:len(ends)-1]
		}
		depth := len(ends)

		end := pos + int(h.Size)
		if depth > 0 {
			parent := ends[depth-1]
			if h.ToEnd {
				end = parent
				h.Size = uint64(end - pos)
			}
			if end > parent {
				return rows, &StructuralError{Type: h.Type, Offset: pos,
					Err: fmt.Errorf("box ends at %d past its parent's end %d", end, parent)}
			}
		}

		body := buf[pos+h.HeaderSize : end]
		row := Row{Depth: depth, Type: h.Type, Offset: pos, Size: int(h.Size)}

		d, err := decodeBox(h, body)
		switch {
		case err == nil:
			row.Properties = d.props
		case recoverable(err):
			log.Debug("box rendered as placeholder", "box", h.Type.String(), "offset", pos, "err", err)
			row.Properties = placeholder(err)
			row.Err = err
			d.children = -1
		default:
			var se *StructuralError
			if !errors.As(err, &se) {
				err = &StructuralError{Type: h.Type, Offset: pos, Err: err}
			}
			return rows, err
		}

		row.Properties.Properties = append([]Property{{Key: "size", Value: sizeValue(h)}}, row.Properties.Properties...)
		rows = append(rows, row)

		if d.children >= 0 {
			ends = append(ends, end)
			pos += h.HeaderSize + d.children
		} else {
			pos = end
		}
	}
	return rows, nil
}

func sizeValue(h Header) Scalar {
	if h.ToEnd {
		return String("Extends to end of file")
	}
	return Usize(h.BodySize() + 8)
}

func placeholder(err error) PropertySet {
	if errors.Is(err, ErrUnknownIVSize) {
		ps := newPropertySet("SampleEncryptionBox")
		ps.add("IV", String("Unsupported size"))
		return ps
	}
	var ne *UnimplementedError
	if errors.As(err, &ne) {
		return newPropertySet("Not implemented")
	}
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		return newPropertySet(fmt.Sprintf("Unsupported (%v)", ue.Err))
	}
	return newPropertySet("Unsupported")
}
