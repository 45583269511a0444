package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// scopes is a stack of lexical environments. Lookup widens outward from the
// innermost scope; lookupLocal does not.
type scopes[V any] struct {
	envs []map[string]V
}

func (s *scopes[V]) push() {
	s.envs = append(s.envs, make(map[string]V))
}

func (s *scopes[V]) pop() {
	if len(s.envs) > 0 {
		s.envs = s.envs[:len(s.envs)-1]
	}
}

func (s *scopes[V]) add(name string, v V) {
	if len(s.envs) == 0 {
		s.push()
	}
	s.envs[len(s.envs)-1][name] = v
}

func (s *scopes[V]) lookup(name string) (V, bool) {
	for i := len(s.envs) - 1; i >= 0; i-- {
		if v, ok := s.envs[i][name]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (s *scopes[V]) lookupLocal(name string) (V, bool) {
	var zero V
	if len(s.envs) == 0 {
		return zero, false
	}
	v, ok := s.envs[len(s.envs)-1][name]
	return v, ok
}

func (s *scopes[V]) dump(sb *strings.Builder, format func(V) string) {
	for i, env := range s.envs {
		fmt.Fprintf(sb, "  Scope %d:\n", i)
		names := make([]string, 0, len(env))
		for name := range env {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(sb, "    %-20s  %s\n", name, format(env[name]))
		}
	}
}

// SymbolTable maps variable names to their declared types for the checker.
type SymbolTable struct {
	scopes[DataType]
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

func (t *SymbolTable) PushEnvironment()             { t.push() }
func (t *SymbolTable) PopEnvironment()              { t.pop() }
func (t *SymbolTable) Add(name string, dt DataType) { t.add(name, dt) }
func (t *SymbolTable) Get(name string) (DataType, bool) {
	return t.lookup(name)
}

// ExistsInCurrEnv checks the innermost scope only.
func (t *SymbolTable) ExistsInCurrEnv(name string) bool {
	_, ok := t.lookupLocal(name)
	return ok
}

// String returns a deterministically ordered dump of the table.
func (t *SymbolTable) String() string {
	var sb strings.Builder
	sb.WriteString("Symbols:\n")
	t.dump(&sb, typeString)
	return sb.String()
}

// VarTable assigns frame slots to variable names during code generation.
// Slots are never reused within a function, so shadowed names keep their
// own storage.
type VarTable struct {
	scopes[int]
	total int
}

func NewVarTable() *VarTable {
	return &VarTable{}
}

// EnterFunction resets slot numbering and opens the function scope.
func (t *VarTable) EnterFunction() {
	t.envs = nil
	t.total = 0
	t.push()
}

func (t *VarTable) PushEnvironment() { t.push() }
func (t *VarTable) PopEnvironment()  { t.pop() }

// Add binds name to the next free slot in the current scope.
func (t *VarTable) Add(name string) int {
	slot := t.total
	t.total++
	t.add(name, slot)
	return slot
}

func (t *VarTable) Get(name string) (int, bool) { return t.lookup(name) }

// Size is the number of slots allocated in the current function.
func (t *VarTable) Size() int { return t.total }

func (t *VarTable) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Slots (%d):\n", t.total)
	t.dump(&sb, func(slot int) string { return fmt.Sprintf("slot %d", slot) })
	return sb.String()
}

// typeString renders a DataType the way it is written in source.
func typeString(dt DataType) string {
	if dt.IsArray {
		return "array " + dt.TypeName.Lexeme
	}
	return dt.TypeName.Lexeme
}
