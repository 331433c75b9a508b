package mp4

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/tetsuo/boxview/drm"
	"github.com/tetsuo/boxview/drm/playready"
	"github.com/tetsuo/boxview/drm/widevine"
)

func decodePssh(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, _ := r.fullBox()
	var systemID uuid.UUID
	copy(systemID[:], r.bytes(16))

	var kids [][]byte
	if version > 0 {
		n := r.u32()
		if r.err == nil && n > maxEntries {
			return PropertySet{}, fmt.Errorf("pssh: %w: %d key ids", errCountTooLarge, n)
		}
		for range n {
			kids = append(kids, r.bytes(16))
		}
	}
	size := r.u32()
	if r.err == nil && size > maxEntries {
		return PropertySet{}, fmt.Errorf("pssh: %w: %d data bytes", errCountTooLarge, size)
	}
	data := r.bytes(int(size))
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}

	sys, known := drm.Lookup(systemID)

	ps := newPropertySet("ProtectionSystemSpecificHeaderBox")
	ps.add("system_id", String(encodeHex(systemID[:])))
	if known {
		ps.add("system_ref", String(sys.Name))
	} else {
		ps.add("system_ref", String(lossy(systemID[:])))
	}
	kt := Table{Rows: make([][]Scalar, 0, len(kids))}
	for _, k := range kids {
		kt.Rows = append(kt.Rows, []Scalar{String(encodeHex(k))})
	}
	ps.add("key_ids", kt)

	if len(data) == 0 {
		ps.add("pssh_data", String(""))
		return ps, nil
	}
	v, err := psshPayload(sys, data)
	if err != nil {
		perr := &PayloadError{System: sys.Name, Err: err}
		ps.add("pssh_data", Hex(data))
		ps.add("pssh_data_error", String(perr.Error()))
		return ps, nil
	}
	ps.add("pssh_data", v)
	return ps, nil
}

func psshPayload(sys drm.System, data []byte) (Value, error) {
	switch sys.Kind {
	case drm.KindPlayReady:
		obj, err := playready.Parse(data)
		if err != nil {
			return nil, err
		}
		return playReadyTable(obj), nil
	case drm.KindWidevine:
		d, err := widevine.Parse(data)
		if err != nil {
			return nil, err
		}
		return widevineTable(d), nil
	}
	return Hex(data), nil
}

func playReadyTable(obj *playready.Object) Table {
	var headers []*playready.Record
	for i := range obj.Records {
		if obj.Records[i].Header != nil {
			headers = append(headers, &obj.Records[i])
		}
	}

	var t kvTable
	opt := func(key, v string) {
		if v != "" {
			t.add(key, String(v))
		}
	}
	for i, rec := range headers {
		if len(headers) > 1 {
			t.add("Record "+strconv.Itoa(i+1), String(""))
		}
		h := rec.Header
		t.add("type", String(rec.Type.String()))
		t.add("xmlns", String(h.XMLNS))
		t.add("version", String(h.Version))

		n := 0
		for _, k := range h.Data.Kids {
			n++
			t.add("KID "+strconv.Itoa(n), String(""))
			opt("algid", k.AlgID)
			opt("checksum", k.Checksum)
			opt("kid", k.Value)
		}
		if pi := h.Data.ProtectInfo; pi != nil {
			for _, k := range pi.Kids {
				n++
				t.add("KID "+strconv.Itoa(n), String(""))
				if pi.AlgID != "" {
					opt("algid", pi.AlgID)
				} else {
					opt("algid", k.AlgID)
				}
				if pi.KeyLen != nil {
					t.add("keylen", U32(*pi.KeyLen))
				}
				opt("checksum", k.Checksum)
				opt("kid", k.Value)
			}
		}
		opt("checksum", h.Data.Checksum)
		opt("la_url", h.Data.LAURL)
		opt("lui_url", h.Data.LUIURL)
		opt("ds_id", h.Data.DSID)
		opt("custom_attributes", h.Data.CustomAttributes)
		opt("decryptor_setup", h.Data.DecryptorSetup)
	}
	return t.t
}

func widevineTable(d *widevine.PsshData) Table {
	var t kvTable
	for i, k := range d.KeyIDs {
		t.add("key_id "+strconv.Itoa(i), String(encodeHex(k)))
	}
	if d.ContentID != nil {
		t.add("content_id", String(lossy(d.ContentID)))
	}
	if d.CryptoPeriodIndex != nil {
		t.add("crypto_period_index", U32(*d.CryptoPeriodIndex))
	}
	if d.ProtectionScheme != nil {
		t.add("protection_scheme", String(widevine.SchemeName(*d.ProtectionScheme)))
	}
	if d.CryptoPeriodSeconds != nil {
		t.add("crypto_period_seconds", U32(*d.CryptoPeriodSeconds))
	}
	if d.Type != nil {
		t.add("type", String(d.Type.String()))
	}
	if d.KeySequence != nil {
		t.add("key_sequence", U32(*d.KeySequence))
	}
	for i, g := range d.GroupIDs {
		t.add("group_id "+strconv.Itoa(i+1), String(lossy(g)))
	}
	for i, k := range d.EntitledKeys {
		t.add("entitled_key "+strconv.Itoa(i+1), String(""))
		if k.EntitlementKeyID != nil {
			t.add("entitlement_key_id", String(lossy(k.EntitlementKeyID)))
		}
		if k.KeyID != nil {
			t.add("key_id", String(lossy(k.KeyID)))
		}
		if k.Key != nil {
			t.add("key", String(lossy(k.Key)))
		}
		if k.IV != nil {
			t.add("iv", String(lossy(k.IV)))
		}
		if k.EntitlementKeySizeBytes != nil {
			t.add("entitlement_key_size_bytes", U32(*k.EntitlementKeySizeBytes))
		}
	}
	if d.VideoFeature != nil {
		t.add("video_feature", String(*d.VideoFeature))
	}
	if d.Algorithm != nil {
		t.add("algorithm", String(d.Algorithm.String()))
	}
	if d.Provider != nil {
		t.add("provider", String(*d.Provider))
	}
	if d.TrackType != nil {
		t.add("track_type", String(*d.TrackType))
	}
	if d.Policy != nil {
		t.add("policy", String(*d.Policy))
	}
	if d.GroupedLicense != nil {
		t.add("grouped_license", String(lossy(d.GroupedLicense)))
	}
	return t.t
}
