// internal/game/actor.go
package game

import "context"

type envelope struct {
	ctx   context.Context
	cmd   Command
	reply chan result
}

type result struct {
	value interface{}
	err   error
}

// Do delivers cmd to the session goroutine and waits for its result. Once the
// session has ended every call fails with SessionNotFound.
func (s *Session) Do(ctx context.Context, cmd Command) (interface{}, error) {
	reply := make(chan result, 1)
	select {
	case <-s.done:
		return nil, ErrSessionNotFound
	default:
	}

	select {
	case s.inbox <- envelope{ctx: ctx, cmd: cmd, reply: reply}:
	case <-s.done:
		return nil, ErrSessionNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-s.done:
		// the terminating command replies before done is closed
		select {
		case r := <-reply:
			return r.value, r.err
		default:
			return nil, ErrSessionNotFound
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// post enqueues an internal command without waiting for it to be applied.
func (s *Session) post(cmd Command) {
	select {
	case s.inbox <- envelope{ctx: context.Background(), cmd: cmd}:
	case <-s.done:
	}
}

// tryPost is post without blocking; it reports whether the command was queued.
func (s *Session) tryPost(cmd Command) bool {
	select {
	case s.inbox <- envelope{ctx: context.Background(), cmd: cmd}:
		return true
	default:
		return false
	}
}

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the session goroutine without archiving. Used on server shutdown.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

// run applies commands one at a time until the session terminates or is closed.
func (s *Session) run() {
	defer func() {
		s.stopAllTimers()
		if s.cfg.onClose != nil {
			s.cfg.onClose(s)
		}
		close(s.done)
	}()

	for {
		select {
		case env := <-s.inbox:
			value, err := s.dispatch(env.ctx, env.cmd)
			if env.reply != nil {
				env.reply <- result{value: value, err: err}
			}
			if s.finished {
				return
			}
		case <-s.quit:
			return
		}
	}
}
