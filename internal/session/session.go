// Package session provides the per-build synthesis session: the one piece
// of mutable state in the engine. A Session owns the (type, name)
// uniqueness registry and the ordered sink of synthesized blocks that forms
// the render boundary.
//
// Sessions are explicit objects threaded through every constructor call.
// There is deliberately no package-level session: independent builds own
// independent sessions and can never conflict with each other.
package session

import (
	"fmt"
	"sync"

	"github.com/vk/stackform/internal/synth"
)

// DuplicateNameError reports a second registration of a (type, name) pair
// within one session.
type DuplicateNameError struct {
	Addr string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s is already declared in this session", e.Addr)
}

// Session tracks declared names and collects synthesized blocks for the
// external renderer. The zero value is not usable; call New.
type Session struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	nodes []*synth.ConfigNode
}

// New creates an empty session.
func New() *Session {
	return &Session{seen: make(map[string]struct{})}
}

// Register claims an address (e.g. "aws_instance.web" or
// "data.aws_ami.base") with insert-or-fail semantics.
func (s *Session) Register(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[addr]; dup {
		return &DuplicateNameError{Addr: addr}
	}
	s.seen[addr] = struct{}{}
	return nil
}

// Release drops a claim taken by Register, so a constructor that fails
// after claiming does not poison re-invocation with the corrected input.
// Releasing an unclaimed address is a no-op.
func (s *Session) Release(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, addr)
}

// Emit hands a finished block to the render boundary. Blocks are retained
// in emission order.
func (s *Session) Emit(node *synth.ConfigNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, node)
}

// Nodes returns the emitted blocks in emission order. The slice is a copy;
// the nodes themselves are treated as immutable once emitted.
func (s *Session) Nodes() []*synth.ConfigNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*synth.ConfigNode, len(s.nodes))
	copy(out, s.nodes)
	return out
}
