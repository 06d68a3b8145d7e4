package crypto

import (
	"errors"
	"fmt"
)

// Settings word layout, as consumed by the key programming tool:
//
//	bits 24-31  marker 0x55
//	bits 0-2    stage i disabled flag (bit i)
//	bits 5-13   stage i parameter, 3 bits each at 5+3*i
const (
	settingsMarker      uint32 = 0b0101_0101 << 24
	settingsMarkerMask  uint32 = 0xFF << 24
	settingsParamShift         = 5
	settingsParamBits          = 3
	settingsDisabledMsk uint32 = 0b111
)

// ErrInvalidSettings is returned by ParseSettingsWord for words that no selector tuple encodes.
var ErrInvalidSettings = errors.New("invalid settings word")

// SettingsWord encodes the selector tuple for human-readable output.
func SettingsWord(s Selectors) uint32 {
	out := settingsMarker
	for i, sel := range s {
		if p, ok := sel.Value(); ok {
			out |= uint32(p) << (settingsParamShift + settingsParamBits*i)
		} else {
			out |= 1 << i
		}
	}
	return out
}

// ParseSettingsWord decodes a word produced by SettingsWord.
func ParseSettingsWord(w uint32) (Selectors, error) {
	var s Selectors
	if w&settingsMarkerMask != settingsMarker {
		return s, fmt.Errorf("%w: marker %#02x", ErrInvalidSettings, w>>24)
	}

	used := settingsMarkerMask | settingsDisabledMsk
	for i := range s {
		shift := settingsParamShift + settingsParamBits*i
		used |= 0b111 << shift
		p := uint8(w>>shift) & 0b111
		if w&(1<<i) != 0 {
			if p != 0 {
				return s, fmt.Errorf("%w: stage %d disabled with parameter %d", ErrInvalidSettings, i+1, p)
			}
			s[i] = Disabled()
			continue
		}
		s[i] = Param(p)
	}

	if w&^used != 0 {
		return s, fmt.Errorf("%w: reserved bits %#x set", ErrInvalidSettings, w&^used)
	}
	return s, nil
}
