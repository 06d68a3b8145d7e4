package crypto

import "fmt"

// Selector is the parameter of one cipher stage: either disabled or a 3-bit value.
// The zero value is a disabled stage.
type Selector struct {
	param   uint8
	enabled bool
}

// Disabled returns a selector for a stage that contributes nothing to the keystream.
func Disabled() Selector {
	return Selector{}
}

// Param returns an enabled selector. Only the low 3 bits of p are kept,
// matching the width of the settings word field.
func Param(p uint8) Selector {
	return Selector{param: p & 0x07, enabled: true}
}

// Value returns the stage parameter and whether the stage is enabled.
func (s Selector) Value() (uint8, bool) {
	return s.param, s.enabled
}

// Enabled reports whether the stage contributes to the keystream.
func (s Selector) Enabled() bool {
	return s.enabled
}

func (s Selector) String() string {
	if !s.enabled {
		return "off"
	}
	return fmt.Sprintf("%d", s.param)
}

// Selectors holds the selectors of stage 1, stage 2 and stage 3, in that order.
type Selectors [3]Selector

func (s Selectors) String() string {
	return fmt.Sprintf("[%s %s %s]", s[0], s[1], s[2])
}

// SearchSelectors lists the per-stage choices the key search enumerates:
// parameters 0-3 followed by a disabled stage.
var SearchSelectors = [5]Selector{Param(0), Param(1), Param(2), Param(3), Disabled()}

// AllSearchSelectors returns every selector tuple built from SearchSelectors (125 tuples).
func AllSearchSelectors() []Selectors {
	out := make([]Selectors, 0, len(SearchSelectors)*len(SearchSelectors)*len(SearchSelectors))
	for _, s1 := range SearchSelectors {
		for _, s2 := range SearchSelectors {
			for _, s3 := range SearchSelectors {
				out = append(out, Selectors{s1, s2, s3})
			}
		}
	}
	return out
}
