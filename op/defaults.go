package op

// Defaults are type-level settings shared by every operation declared on a
// type. They fill in attributes an operation leaves empty.
type Defaults struct {
	CacheNames       []string `yaml:"cacheNames,omitempty"`
	KeyGenerator     string   `yaml:"keyGenerator,omitempty"`
	HashKeyGenerator string   `yaml:"hashKeyGenerator,omitempty"`
	CacheManager     string   `yaml:"cacheManager,omitempty"`
	CacheResolver    string   `yaml:"cacheResolver,omitempty"`
}

// ApplyTo fills o from d. A key expression on o suppresses the default key
// generator and an explicit manager or resolver on o suppresses both defaults,
// so applying defaults never creates a mutual-exclusion violation.
func (d Defaults) ApplyTo(o *Operation) {
	if len(o.CacheNames) == 0 && len(d.CacheNames) > 0 {
		o.CacheNames = append([]string(nil), d.CacheNames...)
	}
	if o.Key == "" && o.KeyGenerator == "" {
		o.KeyGenerator = d.KeyGenerator
	}
	if o.HashKeyGenerator == "" {
		o.HashKeyGenerator = d.HashKeyGenerator
	}
	if o.CacheManager == "" && o.CacheResolver == "" {
		switch {
		case d.CacheResolver != "":
			o.CacheResolver = d.CacheResolver
		case d.CacheManager != "":
			o.CacheManager = d.CacheManager
		}
	}
}

func (d Defaults) IsZero() bool {
	return len(d.CacheNames) == 0 && d.KeyGenerator == "" && d.HashKeyGenerator == "" &&
		d.CacheManager == "" && d.CacheResolver == ""
}
