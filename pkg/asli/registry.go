// pkg/asli/registry.go
package asli

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Live sessions register here so a host can release every driver process on exit.
var registry = struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}{sessions: make(map[*Session]struct{})}

func register(s *Session) {
	registry.mu.Lock()
	registry.sessions[s] = struct{}{}
	registry.mu.Unlock()
}

func unregister(s *Session) {
	registry.mu.Lock()
	delete(registry.sessions, s)
	registry.mu.Unlock()
}

// LiveSessions returns how many sessions currently hold a driver.
func LiveSessions() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.sessions)
}

// Shutdown closes every registered session in parallel. It is safe to call more
// than once and after sessions were closed by their owners. Skipping it at exit
// may leave driver processes running.
func Shutdown(ctx context.Context) error {
	registry.mu.Lock()
	sessions := make([]*Session, 0, len(registry.sessions))
	for s := range registry.sessions {
		sessions = append(sessions, s)
	}
	registry.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.CloseAll()
		})
	}
	return g.Wait()
}
