package connection

import "github.com/rickgao/tsfeed/internal/model"

// StatusPort is the read-mostly surface handed to UI collaborators. It
// forwards to the manager and holds no state of its own.
type StatusPort struct {
	m Manager
}

// NewStatusPort wraps a manager.
func NewStatusPort(m Manager) *StatusPort {
	return &StatusPort{m: m}
}

// State returns the current connection state.
func (p *StatusPort) State() State {
	return p.m.State()
}

// LastError returns the last recorded error, if any.
func (p *StatusPort) LastError() (string, bool) {
	return p.m.LastError()
}

// Snapshot returns a copy of the buffered samples.
func (p *StatusPort) Snapshot() []model.Sample {
	return p.m.Snapshot()
}

// Info returns the full status view.
func (p *StatusPort) Info() Info {
	return p.m.Info()
}

// RequestReconnect forwards to the manager's manual reconnect path.
func (p *StatusPort) RequestReconnect() error {
	return p.m.Reconnect()
}
