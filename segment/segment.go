// Package segment decides what kind of HLS segment a fetched response holds.
package segment

import (
	"bytes"
	"mime"
	"net/url"
	"path"
	"strings"

	gomp4 "github.com/abema/go-mp4"
	mp4 "github.com/tetsuo/boxview"
)

// Type is the kind of a segment.
type Type int

const (
	Unknown Type = iota
	MP4
	WebVTT
)

func (t Type) String() string {
	switch t {
	case MP4:
		return "mp4"
	case WebVTT:
		return "webvtt"
	}
	return "unknown"
}

// Classify tries the content type, then the URL extension, then the bytes.
func Classify(data []byte, rawURL, contentType string) Type {
	if t := byContentType(contentType); t != Unknown {
		return t
	}
	if t := byURL(rawURL); t != Unknown {
		return t
	}
	return byData(data)
}

// Content types from Apple's HLS authoring guidelines.
var contentTypes = map[string]Type{
	"video/mp4":         MP4,
	"video/iso.segment": MP4,
	"audio/mp4":         MP4,
	"application/mp4":   MP4,
	"text/vtt":          WebVTT,
	"text/plain":        WebVTT,
}

// byContentType ignores parameters and case, so "Video/MP4; codecs=avc1"
// matches video/mp4.
func byContentType(ct string) Type {
	if ct == "" {
		return Unknown
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return Unknown
	}
	return contentTypes[mt]
}

var extensions = map[string]Type{
	"mp4": MP4,
	"m4s": MP4,
	"vtt": WebVTT,
}

func byURL(rawURL string) Type {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return Unknown
	}
	name := path.Base(u.Path)
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return Unknown
	}
	return extensions[name[i+1:]]
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

func byData(data []byte) Type {
	if bytes.HasPrefix(bytes.TrimPrefix(data, utf8BOM), []byte("WEBVTT")) {
		return WebVTT
	}
	if isMP4(data) {
		return MP4
	}
	return Unknown
}

// isMP4 looks for an ftyp, as in an initialization section, or a moof, as
// in a media segment, among the top-level boxes. The ftyp must decode.
func isMP4(data []byte) bool {
	for pos := 0; pos < len(data); {
		h, err := mp4.ReadHeader(data, pos)
		if err != nil {
			return false
		}
		switch h.Type {
		case mp4.TypeFtyp:
			body := data[pos+h.HeaderSize : pos+int(h.Size)]
			var ftyp gomp4.Ftyp
			_, err := gomp4.Unmarshal(bytes.NewReader(body), uint64(len(body)), &ftyp, gomp4.Context{})
			return err == nil
		case mp4.TypeMoof:
			return true
		}
		pos += int(h.Size)
	}
	return false
}
