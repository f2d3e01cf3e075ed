package dcache

import (
	"fmt"

	"github.com/unkn0wn-root/dcache/expr"
	"github.com/unkn0wn-root/dcache/internal/memo"
	"github.com/unkn0wn-root/dcache/keygen"
	"github.com/unkn0wn-root/dcache/op"
)

// Options configure an Executor.
// Only Source is required; others have sensible defaults.
type Options struct {
	// Required
	Source op.Source // operations per (method, target type), e.g. an op.Resolution

	CacheManager     CacheManager        // used by operations naming neither manager nor resolver
	CacheResolver    CacheResolver       // nil => SimpleResolver over CacheManager
	KeyGenerator     keygen.KeyGenerator // default keygen.Simple
	HashKeyGenerator keygen.KeyGenerator // HASH operations without hashKey; default keygen.Simple
	Evaluator        expr.Evaluator      // nil => CEL
	ErrorHandler     ErrorHandler        // nil => RethrowHandler
	Beans            Beans               // named generators, managers, resolvers

	Logger            Logger // if nil, NopLogger is used
	Hooks             Hooks  // if nil, NopHooks is used
	MetadataCacheSize int64  // 0 => 4096
}

// Executor runs invocations through their cache operations. It is safe for
// concurrent use.
type Executor struct {
	source     op.Source
	resolver   CacheResolver
	keyGen     keygen.KeyGenerator
	hashKeyGen keygen.KeyGenerator
	eval       expr.Evaluator
	handler    ErrorHandler
	beans      Beans
	log        Logger
	hooks      Hooks

	meta    *memo.Memo[metaKey, *metadata]
	ownedEv *expr.CEL
}

func New(opts Options) (*Executor, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("dcache: source is required")
	}

	e := &Executor{
		source:   opts.Source,
		resolver: opts.CacheResolver,
		beans:    opts.Beans,
		eval:     opts.Evaluator,
	}

	// defaults
	e.keyGen = coalesce[keygen.KeyGenerator](opts.KeyGenerator, keygen.Simple{})
	e.hashKeyGen = coalesce[keygen.KeyGenerator](opts.HashKeyGenerator, keygen.Simple{})
	e.handler = coalesce[ErrorHandler](opts.ErrorHandler, RethrowHandler{})
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if e.resolver == nil && opts.CacheManager != nil {
		e.resolver = SimpleResolver{Manager: opts.CacheManager}
	}

	meta, err := memo.New[metaKey, *metadata](opts.MetadataCacheSize)
	if err != nil {
		return nil, err
	}
	e.meta = meta

	if e.eval == nil {
		cel, err := expr.NewCEL(opts.MetadataCacheSize)
		if err != nil {
			meta.Close()
			return nil, err
		}
		e.eval, e.ownedEv = cel, cel
	}
	return e, nil
}

// Close releases the executor's memo tables. Caches and managers are not
// touched.
func (e *Executor) Close() {
	e.meta.Close()
	if e.ownedEv != nil {
		e.ownedEv.Close()
	}
}
