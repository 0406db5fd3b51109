package gofj

// GlobalTable is the single global function symbol table of spec §3. It is
// populated with the 13 built-ins at startup (§4.6) and grows as user
// functions are preloaded (§4.3). Functions never go out of scope: the
// table lives for the entire process.
type GlobalTable struct {
	funcs *Table[*FunctionSymbol]
}

// NewGlobalTable creates the global table with every built-in pre-inserted,
// making them indistinguishable from user functions for name resolution.
func NewGlobalTable() *GlobalTable {
	g := &GlobalTable{funcs: NewTable[*FunctionSymbol](5003)}
	for _, b := range builtinCatalog {
		g.funcs.Insert(b.Name, b.symbol())
	}

	return g
}

// Get looks up a function by name.
func (g *GlobalTable) Get(name string) (*FunctionSymbol, bool) {
	return g.funcs.Get(name)
}

// Declare inserts a new function symbol, failing if the name already
// exists (built-in or user-defined): a function name collides with
// nothing, per the invariant of spec §3.
func (g *GlobalTable) Declare(fn *FunctionSymbol) bool {
	return g.funcs.Insert(fn.Name, fn)
}

// Scope is one lexical block's variable table. Scopes are pushed on block
// entry and popped on block exit; popping enforces that every variable
// declared in it, parameters aside, has been read at least once.
type Scope struct {
	vars *Table[*VariableSymbol]
}

func newScope() *Scope {
	return &Scope{vars: NewTable[*VariableSymbol](61)}
}

// ScopeStack models the stack of lexical scopes. Variable resolution
// searches from the top of the stack downward; the first hit wins. This
// is deliberately not an eager "inherit" snapshot that copies keys
// forward once — lookups walk the live tables, declarations only ever go
// into the innermost scope (so an enclosing scope cannot gain a name while
// an inner one is pushed), and a pop genuinely removes its variables from
// visibility.
type ScopeStack struct {
	scopes []*Scope
	global *GlobalTable
}

// NewScopeStack creates an empty scope stack bound to the global function
// table, used for cross-kind redefinition checks.
func NewScopeStack(global *GlobalTable) *ScopeStack {
	return &ScopeStack{global: global}
}

// Push enters a new block scope.
func (s *ScopeStack) Push() {
	s.scopes = append(s.scopes, newScope())
	logger.Debug("scope push", "depth", len(s.scopes))
}

// Pop leaves the innermost scope, reporting the unused-variable error
// (exit 9) for the first variable found unread; function parameters are
// exempt from this check. The scope is discarded
// regardless of outcome: spec §7 forbids recovery after the first fatal
// diagnostic, so there is nothing further to preserve.
func (s *ScopeStack) Pop() *CompileError {
	if len(s.scopes) == 0 {
		return nil
	}

	top := s.scopes[len(s.scopes)-1]
	s.scopes = s.scopes[:len(s.scopes)-1]
	logger.Debug("scope pop", "depth", len(s.scopes), "vars", top.vars.Len())

	var unused *CompileError
	top.vars.Each(func(name string, v *VariableSymbol) {
		if unused == nil && !v.Used && !v.IsParam {
			unused = errf(ExitUnusedVariable, v.Line, "declared but unused variable %q", name)
		}
	})

	return unused
}

// Depth returns the number of scopes currently pushed.
func (s *ScopeStack) Depth() int {
	return len(s.scopes)
}

// Lookup resolves a variable name from the top of the stack downward.
func (s *ScopeStack) Lookup(name string) (*VariableSymbol, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i].vars.Get(name); ok {
			return v, true
		}
	}

	return nil, false
}

// Declare inserts sym into the innermost scope. It fails if the name
// already names a variable in any scope on the stack, or any function
// (built-in or user-defined) — the shadowing rule of spec §3's invariants.
func (s *ScopeStack) Declare(sym *VariableSymbol) bool {
	if _, exists := s.Lookup(sym.Name); exists {
		return false
	}

	if _, exists := s.global.Get(sym.Name); exists {
		return false
	}

	top := s.scopes[len(s.scopes)-1]
	return top.vars.Insert(sym.Name, sym)
}
