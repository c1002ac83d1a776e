// Scoped dynamic variables and scoped resource cleanup, the Go
// rendition of the original C `dyn_var`/unwind-protect machinery (spec
// §5 "dynamic context state", §9 "Scoped dynamic variables" and "Scoped
// resources under unwind"; original_source/libdpm/pol.c's
// `dyn_var dpm_pol_origin[1]` together with `dyn_get`/`dyn_foreach` is
// the concrete instance this generalizes). Go's defer already gives
// LIFO, every-exit-path semantics, so a Scope is just a slice of
// deferred closures plus save/restore of a Var's current value — there
// is no separate continuation stack to hand-roll.
package ss

import "sync"

// Var is a process-wide dynamically scoped variable: its value is
// established by Scope.Bind for the duration of a scope and restored
// (including across panic) when the scope ends.
type Var[T any] struct {
	mu      sync.Mutex
	current T
	set     bool
}

// NewVar creates a dynamic variable with the given default value.
func NewVar[T any](def T) *Var[T] {
	return &Var[T]{current: def}
}

// Get returns the variable's current value (the default, or the most
// recently bound value of an enclosing scope).
func (v *Var[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Origin is the dynamic variable naming the preferred package origin
// used by the policy layer (spec §6 "Config recognized"). The core
// itself never reads it; it exists so external collaborators share one
// binding point instead of threading an origin parameter through every
// call.
var Origin = NewVar[string]("")

// Scope is a LIFO sequence of cleanup actions and variable bindings,
// all of which run when the scope ends — on normal return, on an
// explicit Abort, or when a panic unwinds through it.
type Scope struct {
	mu      sync.Mutex
	actions []func()
	done    bool
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Defer registers a cleanup action to run when the scope ends, in
// reverse order of registration relative to other Defer/Bind calls.
func (s *Scope) Defer(action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

// Bind sets v to value for the lifetime of the scope, restoring v's
// prior value when the scope ends.
func Bind[T any](s *Scope, v *Var[T], value T) {
	v.mu.Lock()
	prior := v.current
	v.current = value
	v.mu.Unlock()

	s.Defer(func() {
		v.mu.Lock()
		v.current = prior
		v.mu.Unlock()
	})
}

// Close runs every registered action in LIFO order exactly once. Safe
// to call more than once; only the first call has effect. Intended to
// be deferred immediately after NewScope so it also runs on panic.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	actions := s.actions
	s.actions = nil
	s.mu.Unlock()

	for i := len(actions) - 1; i >= 0; i-- {
		actions[i]()
	}
}

// Abort runs the scope's cleanup actions immediately and panics with
// err, so control unwinds to the nearest recover the way an unhandled
// signal does in spec §7 ("absent a handler ... exits"). Callers that
// want to handle the error instead of propagating it should recover()
// around the call that may Abort.
func (s *Scope) Abort(err error) {
	s.Close()
	panic(err)
}

// Run executes fn within a fresh scope, guaranteeing Close runs even if
// fn panics, then re-panics so the caller's own recover (if any) still
// observes it.
func Run(fn func(s *Scope)) {
	s := NewScope()
	defer s.Close()
	fn(s)
}
