package op

import "fmt"

// ConfigError reports a misconfigured call site. It is fatal: the executor
// surfaces it immediately and never hands it to an error handler.
type ConfigError struct {
	Op  string // rendering of the offending operation, may be empty
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Op == "" {
		return "dcache: invalid configuration: " + e.Msg
	}
	return fmt.Sprintf("dcache: invalid configuration on %s: %s", e.Op, e.Msg)
}

// Errorf builds a ConfigError for o (which may be nil).
func Errorf(o *Operation, format string, args ...any) *ConfigError {
	e := &ConfigError{Msg: fmt.Sprintf(format, args...)}
	if o != nil {
		e.Op = o.String()
	}
	return e
}
