package pipe

// signal is a broadcast wait condition paired with the gate. Both methods
// must be called with the gate held.
//
// A waiter takes the channel from wait while holding the gate, releases the
// gate and then blocks on the channel. broadcast closes the channel, which
// wakes every waiter that captured it, and starts a new generation. Because
// capture happens under the gate, no broadcast between release and suspend
// can be missed.
type signal struct {
	ch chan struct{}
}

func (s *signal) wait() <-chan struct{} {
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}

func (s *signal) broadcast() {
	if s.ch != nil {
		close(s.ch)
		s.ch = nil
	}
}
