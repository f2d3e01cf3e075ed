// Package op describes cache operations: the declarative directives attached
// to a call site (Cacheable, Put, Evict) and the sources that resolve them for
// a given method and target type.
package op

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Kind uint8

const (
	Cacheable Kind = iota + 1
	Put
	Evict
)

func (k Kind) String() string {
	switch k {
	case Cacheable:
		return "cacheable"
	case Put:
		return "put"
	case Evict:
		return "evict"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k *Kind) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "cacheable":
		*k = Cacheable
	case "put":
		*k = Put
	case "evict":
		*k = Evict
	default:
		return fmt.Errorf("op: unknown operation kind %q", s)
	}
	return nil
}

// DataKind selects whole-key values or fields inside a hash value.
type DataKind uint8

const (
	String DataKind = iota
	Hash
)

func (d DataKind) String() string {
	if d == Hash {
		return "hash"
	}
	return "string"
}

func (d *DataKind) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "", "string":
		*d = String
	case "hash":
		*d = Hash
	default:
		return fmt.Errorf("op: unknown data kind %q", s)
	}
	return nil
}

// Operation is one cache directive. Kind tags the variant; fields that belong
// to another variant must stay zero (see Validate).
type Operation struct {
	Kind Kind   `yaml:"kind"`
	Name string `yaml:"name,omitempty"` // descriptive, filled by sources when empty

	CacheNames       []string `yaml:"cacheNames,omitempty"`
	Key              string   `yaml:"key,omitempty"`
	KeyGenerator     string   `yaml:"keyGenerator,omitempty"`
	Condition        string   `yaml:"condition,omitempty"`
	CacheManager     string   `yaml:"cacheManager,omitempty"`
	CacheResolver    string   `yaml:"cacheResolver,omitempty"`
	DataKind         DataKind `yaml:"dataKind,omitempty"`
	HashKey          string   `yaml:"hashKey,omitempty"`
	HashKeyGenerator string   `yaml:"hashKeyGenerator,omitempty"`

	// Cacheable, Put
	Unless string        `yaml:"unless,omitempty"`
	TTL    time.Duration `yaml:"ttl,omitempty"` // 0 => cache default

	// Cacheable
	Sync bool `yaml:"sync,omitempty"`

	// Evict
	CacheWide        bool `yaml:"cacheWide,omitempty"`
	BeforeInvocation bool `yaml:"beforeInvocation,omitempty"`
}

func (o *Operation) String() string {
	var b strings.Builder
	b.WriteString(o.Kind.String())
	if o.Name != "" {
		b.WriteString("[" + o.Name + "]")
	}
	fmt.Fprintf(&b, " caches=%v", o.CacheNames)
	if o.Key != "" {
		fmt.Fprintf(&b, " key=%q", o.Key)
	}
	if o.KeyGenerator != "" {
		fmt.Fprintf(&b, " keyGenerator=%q", o.KeyGenerator)
	}
	if o.Condition != "" {
		fmt.Fprintf(&b, " condition=%q", o.Condition)
	}
	if o.DataKind == Hash {
		b.WriteString(" dataKind=hash")
	}
	if o.Unless != "" {
		fmt.Fprintf(&b, " unless=%q", o.Unless)
	}
	if o.Sync {
		b.WriteString(" sync")
	}
	if o.CacheWide {
		b.WriteString(" cacheWide")
	}
	if o.BeforeInvocation {
		b.WriteString(" beforeInvocation")
	}
	return b.String()
}

// Check validates a single operation in isolation.
func (o *Operation) Check() error {
	switch o.Kind {
	case Cacheable, Put, Evict:
	default:
		return Errorf(o, "unknown operation kind %d", uint8(o.Kind))
	}
	if o.Key != "" && o.KeyGenerator != "" {
		return Errorf(o, "both 'key' and 'keyGenerator' attributes have been set; these attributes are mutually exclusive")
	}
	if o.CacheManager != "" && o.CacheResolver != "" {
		return Errorf(o, "both 'cacheManager' and 'cacheResolver' attributes have been set; these attributes are mutually exclusive")
	}
	if o.TTL < 0 {
		return Errorf(o, "negative ttl %s", o.TTL)
	}
	switch o.Kind {
	case Cacheable:
		if o.CacheWide || o.BeforeInvocation {
			return Errorf(o, "'cacheWide' and 'beforeInvocation' only apply to evict operations")
		}
	case Put:
		if o.Sync {
			return Errorf(o, "'sync' only applies to cacheable operations")
		}
		if o.CacheWide || o.BeforeInvocation {
			return Errorf(o, "'cacheWide' and 'beforeInvocation' only apply to evict operations")
		}
	case Evict:
		if o.Sync || o.Unless != "" || o.TTL != 0 {
			return Errorf(o, "'sync', 'unless' and 'ttl' do not apply to evict operations")
		}
	}
	return nil
}

// Validate checks every operation of one call site, including the rules that
// span operations.
func Validate(ops []Operation) error {
	for i := range ops {
		if err := ops[i].Check(); err != nil {
			return err
		}
	}
	for i := range ops {
		o := &ops[i]
		if o.Kind != Cacheable || !o.Sync {
			continue
		}
		if len(ops) > 1 {
			return Errorf(o, "sync=true only allows a single cache operation on the call site")
		}
		if len(o.CacheNames) > 1 {
			return Errorf(o, "sync=true only allows a single cache, got %v", o.CacheNames)
		}
		if o.Unless != "" {
			return Errorf(o, "sync=true does not support 'unless'")
		}
	}
	return nil
}

// Clone returns a deep copy of ops.
func Clone(ops []Operation) []Operation {
	if ops == nil {
		return nil
	}
	out := make([]Operation, len(ops))
	copy(out, ops)
	for i := range out {
		out[i].CacheNames = append([]string(nil), out[i].CacheNames...)
	}
	return out
}
