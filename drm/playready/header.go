package playready

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type state int

const (
	stHeader state = iota
	stData
	stKid
	stProtectInfo
	stKids
	stChecksum
	stLAURL
	stLUIURL
	stDSID
	stDecryptorSetup
	stCustomAttributes
	stKeyLen
	stAlgID
)

// closing names the end tag that leaves each state.
var closing = map[state]string{
	stData:             "DATA",
	stKid:              "KID",
	stProtectInfo:      "PROTECTINFO",
	stKids:             "KIDS",
	stChecksum:         "CHECKSUM",
	stLAURL:            "LA_URL",
	stLUIURL:           "LUI_URL",
	stDSID:             "DS_ID",
	stDecryptorSetup:   "DECRYPTORSETUP",
	stCustomAttributes: "CUSTOMATTRIBUTES",
	stKeyLen:           "KEYLEN",
	stAlgID:            "ALGID",
}

// headerParser walks the WRMHEADER element tree. Elements it does not know
// are ignored along with their text.
type headerParser struct {
	src   string
	stack []state

	xmlns, version string
	hasVersion     bool
	dataFound      bool

	data        WRMData
	kid         *KID
	kidInPI     bool
	protectInfo *ProtectInfo

	customStart int64
}

func (p *headerParser) cur() state { return p.stack[len(p.stack)-1] }

func (p *headerParser) push(s state) { p.stack = append(p.stack, s) }

func (p *headerParser) pop() { p.stack = p.stack[:len(p.stack)-1] }

func parseHeader(payload []byte) (*WRMHeader, error) {
	src, err := decodeUTF16(payload)
	if err != nil {
		return nil, err
	}
	p := &headerParser{src: src, stack: []state{stHeader}}

	d := xml.NewDecoder(strings.NewReader(src))
	// The payload is already decoded; an encoding="utf-16" declaration
	// must not make the decoder convert it again.
	d.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	for {
		start := d.InputOffset()
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("PlayReady pssh XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			p.start(t, start)
		case xml.EndElement:
			p.end(t, d.InputOffset())
		case xml.CharData:
			p.text(string(t))
		}
	}

	if p.cur() != stHeader {
		return nil, ErrUnexpectedEOF
	}
	if !p.dataFound {
		return nil, ErrNoData
	}
	if !p.hasVersion {
		return nil, ErrNoVersion
	}
	xmlns := p.xmlns
	if xmlns == "" {
		xmlns = DefaultXMLNS
	}
	return &WRMHeader{XMLNS: xmlns, Version: p.version, Data: p.data}, nil
}

func (p *headerParser) start(t xml.StartElement, offset int64) {
	name := t.Name.Local
	switch p.cur() {
	case stHeader:
		switch name {
		case "WRMHEADER":
			for _, a := range t.Attr {
				switch a.Name.Local {
				case "xmlns":
					if a.Name.Space == "" {
						p.xmlns = a.Value
					}
				case "version":
					p.version, p.hasVersion = a.Value, true
				}
			}
		case "DATA":
			p.dataFound = true
			p.push(stData)
		}
	case stData:
		switch name {
		case "KID":
			p.openKid(t, false)
		case "PROTECTINFO":
			p.protectInfo = &ProtectInfo{}
			p.push(stProtectInfo)
		case "CHECKSUM":
			p.push(stChecksum)
		case "LA_URL":
			p.push(stLAURL)
		case "LUI_URL":
			p.push(stLUIURL)
		case "DS_ID":
			p.push(stDSID)
		case "DECRYPTORSETUP":
			p.push(stDecryptorSetup)
		case "CUSTOMATTRIBUTES":
			p.customStart = offset
			p.push(stCustomAttributes)
		}
	case stProtectInfo:
		switch name {
		case "KIDS":
			p.push(stKids)
		case "KID":
			p.openKid(t, true)
		case "ALGID":
			p.push(stAlgID)
		case "KEYLEN":
			p.push(stKeyLen)
		}
	case stKids:
		if name == "KID" {
			p.openKid(t, true)
		}
	}
}

func (p *headerParser) openKid(t xml.StartElement, inProtectInfo bool) {
	k := &KID{}
	for _, a := range t.Attr {
		switch a.Name.Local {
		case "VALUE":
			k.Value = a.Value
		case "ALGID":
			k.AlgID = a.Value
		case "CHECKSUM":
			k.Checksum = a.Value
		}
	}
	p.kid, p.kidInPI = k, inProtectInfo
	p.push(stKid)
}

func (p *headerParser) end(t xml.EndElement, offset int64) {
	s := p.cur()
	if closing[s] != t.Name.Local {
		return
	}
	switch s {
	case stKid:
		if p.kidInPI {
			if p.protectInfo != nil {
				p.protectInfo.Kids = append(p.protectInfo.Kids, *p.kid)
			}
		} else {
			p.data.Kids = append(p.data.Kids, *p.kid)
		}
		p.kid = nil
	case stProtectInfo:
		p.data.ProtectInfo = p.protectInfo
		p.protectInfo = nil
	case stCustomAttributes:
		p.data.CustomAttributes += p.src[p.customStart:offset]
	}
	p.pop()
}

func (p *headerParser) text(raw string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return
	}
	switch p.cur() {
	case stKid:
		p.kid.Value += s
	case stChecksum:
		p.data.Checksum += s
	case stLAURL:
		p.data.LAURL += s
	case stLUIURL:
		p.data.LUIURL += s
	case stDSID:
		p.data.DSID += s
	case stDecryptorSetup:
		p.data.DecryptorSetup += s
	case stAlgID:
		if p.protectInfo != nil {
			p.protectInfo.AlgID += s
		}
	case stKeyLen:
		if p.protectInfo != nil {
			if n, err := strconv.ParseUint(s, 10, 32); err == nil {
				v := uint32(n)
				p.protectInfo.KeyLen = &v
			} else {
				p.protectInfo.KeyLen = nil
			}
		}
	}
}
