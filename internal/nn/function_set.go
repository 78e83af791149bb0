package nn

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// MaxFunctions bounds the number of functions a set can hold.
const MaxFunctions = 50

var (
	ErrFunctionSetFull  = errors.New("function set is full")
	ErrEmptyFunctionSet = errors.New("function set is empty")
)

type setEntry struct {
	name  string
	fn    NodeFunc
	arity int
}

// FunctionSet is the ordered list of functions nodes may select by index.
// A set is treated as immutable once a run starts.
type FunctionSet struct {
	entries []setEntry
	logger  *slog.Logger
}

func NewFunctionSet(names ...string) (*FunctionSet, error) {
	fs := &FunctionSet{}
	if err := fs.Add(names...); err != nil {
		return nil, err
	}
	return fs, nil
}

// SetLogger routes capacity warnings to logger. A nil logger uses slog.Default.
func (fs *FunctionSet) SetLogger(logger *slog.Logger) {
	fs.logger = logger
}

// Add appends preset functions by name. Each argument may itself be a
// comma-separated list such as "add,sub,mul".
func (fs *FunctionSet) Add(names ...string) error {
	for _, arg := range names {
		for _, raw := range strings.Split(arg, ",") {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			spec, err := LookupFunction(name)
			if err != nil {
				return err
			}
			if err := fs.push(spec.Name, spec.Func, spec.Arity); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddCustom appends a function that is not part of the preset catalog.
// Chromosomes using it can be saved but only reloaded once the function is
// registered under the same name.
func (fs *FunctionSet) AddCustom(name string, fn NodeFunc, arity int) error {
	if name == "" {
		return errors.New("node function name is required")
	}
	if fn == nil {
		return errors.New("node function is required")
	}
	if arity < VariableArity {
		return fmt.Errorf("invalid arity %d for node function %s", arity, name)
	}
	return fs.push(name, fn, arity)
}

func (fs *FunctionSet) push(name string, fn NodeFunc, arity int) error {
	if len(fs.entries) >= MaxFunctions {
		fs.log().Warn("function set full, function not added",
			"function", name,
			"capacity", MaxFunctions,
		)
		return fmt.Errorf("%w: cannot add %s (capacity %d)", ErrFunctionSetFull, name, MaxFunctions)
	}
	fs.entries = append(fs.entries, setEntry{name: name, fn: fn, arity: arity})
	return nil
}

func (fs *FunctionSet) log() *slog.Logger {
	if fs.logger != nil {
		return fs.logger
	}
	return slog.Default()
}

func (fs *FunctionSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.entries)
}

func (fs *FunctionSet) Name(i int) string { return fs.entries[i].name }

func (fs *FunctionSet) Arity(i int) int { return fs.entries[i].arity }

func (fs *FunctionSet) Func(i int) NodeFunc { return fs.entries[i].fn }

// Index returns the position of name in the set or -1.
func (fs *FunctionSet) Index(name string) int {
	for i, e := range fs.entries {
		if e.name == name {
			return i
		}
	}
	return -1
}

func (fs *FunctionSet) Names() []string {
	out := make([]string, len(fs.entries))
	for i, e := range fs.entries {
		out[i] = e.name
	}
	return out
}

// ActualArity clamps the declared arity of function i to the chromosome arity.
func (fs *FunctionSet) ActualArity(i, arity int) int {
	declared := fs.entries[i].arity
	if declared == VariableArity || declared > arity {
		return arity
	}
	return declared
}

func (fs *FunctionSet) Clear() {
	fs.entries = fs.entries[:0]
}

func (fs *FunctionSet) Clone() *FunctionSet {
	if fs == nil {
		return nil
	}
	entries := make([]setEntry, len(fs.entries))
	copy(entries, fs.entries)
	return &FunctionSet{entries: entries, logger: fs.logger}
}

func (fs *FunctionSet) String() string {
	return strings.Join(fs.Names(), ",")
}
