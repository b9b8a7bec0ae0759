package output

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Sink defines a destination for cleanup events.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager coordinates writing events to multiple sinks. A Manager with no
// sinks discards everything.
type Manager struct {
	mu    sync.Mutex
	sinks []Sink
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Write(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs *multierror.Error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("errors writing to sinks: %w", err)
	}
	return nil
}

func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs *multierror.Error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("errors closing sinks: %w", err)
	}
	return nil
}
