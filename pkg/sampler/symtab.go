package sampler

import (
	"sync"

	"github.com/grafana/pf2/pkg/model"
)

type functionKey struct {
	name, filename         string
	startLine              int64
	startAddress           uint64
	implementation         model.Implementation
	hasName, hasFile       bool
	hasStartLine, hasStart bool
}

type locationKey struct {
	function         int
	lineno           int64
	address          uint64
	hasLine, hasAddr bool
}

// SymbolTable deduplicates functions and locations reported by a Capturer.
// It is safe for concurrent use.
type SymbolTable struct {
	mu            sync.Mutex
	functions     []model.Function
	functionIndex map[functionKey]int
	locations     []model.Location
	locationIndex map[locationKey]int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		functionIndex: make(map[functionKey]int),
		locationIndex: make(map[locationKey]int),
	}
}

// Function returns the index of fn, adding it if it is new.
func (t *SymbolTable) Function(fn model.Function) int {
	k := functionKey{implementation: fn.Implementation}
	if fn.Name != nil {
		k.name, k.hasName = *fn.Name, true
	}
	if fn.Filename != nil {
		k.filename, k.hasFile = *fn.Filename, true
	}
	if fn.StartLine != nil {
		k.startLine, k.hasStartLine = int64(*fn.StartLine), true
	}
	if fn.StartAddress != nil {
		k.startAddress, k.hasStart = *fn.StartAddress, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.functionIndex[k]; ok {
		return i
	}
	i := len(t.functions)
	t.functions = append(t.functions, fn)
	t.functionIndex[k] = i
	return i
}

// Location returns the index of loc, adding it if it is new. The function
// index must have been returned by Function.
func (t *SymbolTable) Location(loc model.Location) int {
	k := locationKey{function: loc.FunctionIndex}
	if loc.Lineno != nil {
		k.lineno, k.hasLine = int64(*loc.Lineno), true
	}
	if loc.Address != nil {
		k.address, k.hasAddr = *loc.Address, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.locationIndex[k]; ok {
		return i
	}
	i := len(t.locations)
	t.locations = append(t.locations, loc)
	t.locationIndex[k] = i
	return i
}

// Snapshot returns copies of the tables.
func (t *SymbolTable) Snapshot() ([]model.Function, []model.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	functions := make([]model.Function, len(t.functions))
	copy(functions, t.functions)
	locations := make([]model.Location, len(t.locations))
	copy(locations, t.locations)
	return functions, locations
}
