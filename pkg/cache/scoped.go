package cache

// ScopedKeyer prefixes every key of an inner Keyer. The CLI scopes keys by
// build version so figures rendered by an older release are not reused.
//
//	k := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "v1.2.0:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner; a nil inner uses DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// FigureKey implements Keyer.
func (k *ScopedKeyer) FigureKey(dataHash string, opts FigureKeyOpts) string {
	return k.prefix + k.inner.FigureKey(dataHash, opts)
}
