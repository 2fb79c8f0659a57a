package fake

import (
	"context"
	"slices"
	"sync"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/logger"
)

// Factory opens fake sessions and remembers all of them.
type Factory struct {
	Config Config

	locker   sync.Mutex
	sessions []*Session
	mimes    []string
	openErr  error
}

var _ codec.Factory = (*Factory)(nil)

func NewFactory(cfg Config) *Factory {
	return &Factory{Config: cfg}
}

func (f *Factory) String() string {
	return "fake"
}

func (f *Factory) NewDecoder(ctx context.Context, mimeType string) (_ codec.Session, _err error) {
	logger.Debugf(ctx, "NewDecoder(%s)", mimeType)
	defer func() { logger.Debugf(ctx, "/NewDecoder(%s): %v", mimeType, _err) }()
	f.locker.Lock()
	defer f.locker.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := NewSession(f.Config)
	s.ID = len(f.sessions)
	f.sessions = append(f.sessions, s)
	f.mimes = append(f.mimes, mimeType)
	return s, nil
}

// SetOpenError makes NewDecoder fail (nil resets).
func (f *Factory) SetOpenError(err error) {
	f.locker.Lock()
	defer f.locker.Unlock()
	f.openErr = err
}

func (f *Factory) Sessions() []*Session {
	f.locker.Lock()
	defer f.locker.Unlock()
	return slices.Clone(f.sessions)
}

// Last returns the most recently opened session.
func (f *Factory) Last() *Session {
	f.locker.Lock()
	defer f.locker.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

func (f *Factory) MIMETypes() []string {
	f.locker.Lock()
	defer f.locker.Unlock()
	return slices.Clone(f.mimes)
}
