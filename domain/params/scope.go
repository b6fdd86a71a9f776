package params

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Provider produces a dependency value. It may resolve nested dependencies
// through s.
type Provider func(ctx context.Context, s *Scope) (any, error)

// ErrDependencyCycle is returned when a provider (transitively) depends on itself.
var ErrDependencyCycle = errors.New("dependency cycle")

// ErrNotDependency is returned when Resolve is given a non-dependency field.
var ErrNotDependency = errors.New("field is not a dependency")

// Scope holds the dependency results of a single request.
// It is safe for concurrent use.
type Scope struct {
	mu      sync.Mutex
	results map[*FieldInfo]*result
	waits   map[*wait]struct{}
}

type result struct {
	done  chan struct{}
	owner *chain // frame computing the value
	value any
	err   error

	// abandoned is set when the owner's context ended first; waiters retry.
	abandoned bool
}

// wait records a call path blocked on another path's in-flight result.
type wait struct {
	from *chain
	on   *result
}

// NewScope creates an empty per-request scope.
func NewScope() *Scope {
	return &Scope{
		results: make(map[*FieldInfo]*result),
		waits:   make(map[*wait]struct{}),
	}
}

type chainKey struct{}

// chain is the list of dependencies currently being resolved on this call path.
type chain struct {
	dep    *FieldInfo
	parent *chain
}

func (c *chain) contains(dep *FieldInfo) bool {
	for ; c != nil; c = c.parent {
		if c.dep == dep {
			return true
		}
	}
	return false
}

func (c *chain) hasFrame(frame *chain) bool {
	for ; c != nil; c = c.parent {
		if c == frame {
			return true
		}
	}
	return false
}

// Resolve returns the value of dep. Cached dependencies are computed at most
// once per Scope and their errors are cached too, except when the computing
// caller's context ended: the next caller then computes the value again.
// Uncached dependencies run on every call.
func (s *Scope) Resolve(ctx context.Context, dep *FieldInfo) (any, error) {
	if dep == nil || dep.kind != KindDepend {
		return nil, ErrNotDependency
	}
	if err := dep.Validate(); err != nil {
		return nil, err
	}

	parent, _ := ctx.Value(chainKey{}).(*chain)
	if parent.contains(dep) {
		return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, dep)
	}
	frame := &chain{dep: dep, parent: parent}
	ctx = context.WithValue(ctx, chainKey{}, frame)

	if !dep.cache {
		return dep.provider(ctx, s)
	}

	for {
		s.mu.Lock()
		r, ok := s.results[dep]
		if !ok {
			r = &result{done: make(chan struct{}), owner: frame}
			s.results[dep] = r
			s.mu.Unlock()
			return s.compute(ctx, dep, r)
		}
		if !r.finished() && s.waitsOnItself(parent, r) {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, dep)
		}
		w := &wait{from: parent, on: r}
		s.waits[w] = struct{}{}
		s.mu.Unlock()

		var err error
		select {
		case <-r.done:
		case <-ctx.Done():
			err = ctx.Err()
		}

		s.mu.Lock()
		delete(s.waits, w)
		s.mu.Unlock()

		if err != nil {
			return nil, err
		}
		if r.abandoned {
			continue
		}
		return r.value, r.err
	}
}

func (s *Scope) compute(ctx context.Context, dep *FieldInfo, r *result) (any, error) {
	defer close(r.done)

	value, err := dep.provider(ctx, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && ctx.Err() != nil {
		delete(s.results, dep)
		r.abandoned = true
	}
	r.value, r.err = value, err
	return value, err
}

func (r *result) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// waitsOnItself reports whether path waiting on r would deadlock: r's owner,
// or any result its subtree is already waiting on, is computed by a frame on
// path. Must be called with s.mu held.
func (s *Scope) waitsOnItself(path *chain, r *result) bool {
	seen := make(map[*result]bool)
	pending := []*result{r}
	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true

		if path.hasFrame(cur.owner) {
			return true
		}
		for w := range s.waits {
			if w.from.hasFrame(cur.owner) {
				pending = append(pending, w.on)
			}
		}
	}
	return false
}
