// Package drm identifies content protection systems by their pssh system id.
package drm

import (
	"github.com/google/uuid"
)

// Kind selects the decoder for a system's pssh payload.
type Kind int

const (
	KindRaw Kind = iota
	KindPlayReady
	KindWidevine
)

// System is a registered content protection system.
type System struct {
	ID   uuid.UUID
	Name string
	Kind Kind
}

// Well-known system ids.
var (
	PlayReady = uuid.MustParse("9a04f07998404286ab92e65be0885f95")
	Widevine  = uuid.MustParse("edef8ba979d64acea3c827dcd51d21ed")
	FairPlay  = uuid.MustParse("94ce86fb07ff4f43adb893d2fa968ca2")
	Common    = uuid.MustParse("1077efecc0b24d02ace33c1e52e2fb4b")
)

// From https://dashif.org/identifiers/content_protection/.
var systems = []System{
	{ID: uuid.MustParse("6dd8b3c345f44a68bf3a64168d01a4a6"), Name: "ABV DRM (MoDRM)"},
	{ID: uuid.MustParse("f239e769efa348509c16a903c6932efb"), Name: "Adobe Primetime DRM version 4"},
	{ID: uuid.MustParse("616c7469636173742d50726f74656374"), Name: "Alticast"},
	{ID: FairPlay, Name: "Apple FairPlay"},
	{ID: uuid.MustParse("279fe473512c48feade8d176fee6b40f"), Name: "Arris Titanium"},
	{ID: uuid.MustParse("3d5e6d359b9a41e8b843dd3c6e72c42c"), Name: "ChinaDRM"},
	{ID: uuid.MustParse("3ea8778f77424bf9b18be834b2acbd47"), Name: "Clear Key AES-128"},
	{ID: uuid.MustParse("be58615b19c4468488b3c8c57e99e957"), Name: "Clear Key SAMPLE-AES"},
	{ID: uuid.MustParse("e2719d58a985b3c9781ab030af78d30e"), Name: "Clear Key DASH-IF"},
	{ID: uuid.MustParse("644fe7b5260f4fad949a0762ffb054b4"), Name: "CMLA (OMA DRM)"},
	{ID: uuid.MustParse("37c332587b994c7eb15d19af74482154"), Name: "Commscope Titanium V3"},
	{ID: uuid.MustParse("45d481cb8fe049c0ada9ab2d2455b2f2"), Name: "CoreCrypt"},
	{ID: uuid.MustParse("dcf4e3e362f158187ba60a6fe33ff3dd"), Name: "DigiCAP SmartXess"},
	{ID: uuid.MustParse("35bf197b530e42d78b651b4bf415070f"), Name: "DivX DRM Series 5"},
	{ID: uuid.MustParse("80a6be7e14484c379e70d5aebe04c8d2"), Name: "Irdeto Content Protection"},
	{ID: uuid.MustParse("5e629af538da4063897797ffbd9902d4"), Name: "Marlin Adaptive Streaming Simple Profile V1.0"},
	{ID: PlayReady, Name: "Microsoft PlayReady", Kind: KindPlayReady},
	{ID: uuid.MustParse("6a99532d869f59229a91113ab7b1e2f3"), Name: "MobiTV DRM"},
	{ID: uuid.MustParse("adb41c242dbf4a6d958b4457c0d27b95"), Name: "Nagra MediaAccess PRM 3.0"},
	{ID: uuid.MustParse("1f83e1e86ee94f0dba2f5ec4e3ed1a66"), Name: "SecureMedia"},
	{ID: uuid.MustParse("992c46e6c4374899b6a050fa91ad0e39"), Name: "SecureMedia SteelKnot"},
	{ID: uuid.MustParse("a68129d3575b4f1a9cba3223846cf7c3"), Name: "Synamedia/Cisco/NDS VideoGuard DRM"},
	{ID: uuid.MustParse("aa11967fcc014a4a8e99c5d3dddfea2d"), Name: "Unitend DRM (UDRM)"},
	{ID: uuid.MustParse("9a27dd82fde247258cbc4234aa06ec09"), Name: "Verimatrix VCAS"},
	{ID: uuid.MustParse("b4413586c58cffb094a5d4896c1af6c3"), Name: "Viaccess-Orca DRM (VODRM)"},
	{ID: uuid.MustParse("793b79569f944946a94223e7ef7e44b4"), Name: "VisionCrypt"},
	{ID: Common, Name: "W3C Common PSSH box"},
	{ID: Widevine, Name: "Widevine Content Protection", Kind: KindWidevine},
}

var byID = func() map[uuid.UUID]System {
	m := make(map[uuid.UUID]System, len(systems))
	for _, s := range systems {
		m[s.ID] = s
	}
	return m
}()

// Lookup returns the registered system with the given id.
func Lookup(id uuid.UUID) (System, bool) {
	s, ok := byID[id]
	return s, ok
}

// Systems returns every registered system in display order.
func Systems() []System {
	out := make([]System, len(systems))
	copy(out, systems)
	return out
}
