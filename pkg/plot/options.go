package plot

import "maps"

// Options is the style-configuration bag passed to every drawing call.
// Keys use static-style option names; see the Key constants.
type Options map[string]any

// Recognized style keys.
const (
	KeyColor           = "color"
	KeyC               = "c"
	KeyEdgeColor       = "edgecolor"
	KeyEdgeColors      = "edgecolors"
	KeyLineWidth       = "linewidth"
	KeyLineStyle       = "linestyle"
	KeyMarker          = "marker"
	KeyMarkerSize      = "markersize"
	KeyMarkerFaceColor = "markerfacecolor"
	KeyMarkerEdgeColor = "markeredgecolor"
	KeyAlpha           = "alpha"
	KeyLabel           = "label"
	KeyS               = "s"
	KeyWhere           = "where"
	KeyWidth           = "width"
	KeyAlign           = "align"
	KeyZOrder          = "zorder"
	KeyLegendGroup     = "legendgroup"
)

// Legend keys. Most have no interactive equivalent and are ignored there.
const (
	KeyLoc          = "loc"
	KeyNCol         = "ncol"
	KeyFancyBox     = "fancybox"
	KeyBBoxToAnchor = "bbox_to_anchor"
	KeyProp         = "prop"
	KeyHandles      = "handles"
	KeyLabels       = "labels"
)

// Clone returns a shallow copy; nil stays an empty, writable bag.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

// Has reports whether key is present.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Float returns the numeric value stored at key.
func (o Options) Float(key string) (float64, bool) {
	v, ok := o[key]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// String returns the string stored at key.
func (o Options) String(key string) (string, bool) {
	s, ok := o[key].(string)
	return s, ok
}

// take removes key and returns its value.
func (o Options) take(key string) (any, bool) {
	v, ok := o[key]
	if ok {
		delete(o, key)
	}
	return v, ok
}

// ToFloat converts the numeric types produced by Go code and by TOML/JSON
// decoding to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// IsNoneStyle reports whether a linestyle or marker value disables the element.
func IsNoneStyle(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	switch s {
	case "None", "none", "", " ":
		return true
	}
	return false
}
