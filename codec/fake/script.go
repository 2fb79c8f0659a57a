package fake

import (
	"github.com/xaionaro-go/amcdecoder/codec"
)

// InjectInput makes the next DequeueInputBuffer calls return the given
// results immediately, before any real slot is handed out.
func (s *Session) InjectInput(results ...codec.DequeueInputResult) {
	s.locker.Lock()
	defer s.locker.Unlock()
	for _, r := range results {
		s.inputScript = append(s.inputScript, scriptStep{input: r})
	}
	s.notifyLocked()
}

func (s *Session) InjectInputError(err error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.inputScript = append(s.inputScript, scriptStep{err: err})
	s.notifyLocked()
}

// InjectOutput makes the next DequeueOutputBuffer calls return the given
// results immediately.
func (s *Session) InjectOutput(results ...codec.DequeueOutputResult) {
	s.locker.Lock()
	defer s.locker.Unlock()
	for _, r := range results {
		s.outputScript = append(s.outputScript, scriptStep{output: r})
	}
	s.notifyLocked()
}

func (s *Session) InjectOutputError(err error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.outputScript = append(s.outputScript, scriptStep{err: err})
	s.notifyLocked()
}

// InjectOutputFormatChange makes the next DequeueOutputBuffer call report
// OutputFormatChanged with OutputFormat returning the given format since
// then.
func (s *Session) InjectOutputFormatChange(format codec.Format) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.outputScript = append(s.outputScript, scriptStep{
		output: codec.OutputFormatChanged{},
		format: &format,
	})
	s.notifyLocked()
}

// SetInputAvailable(false) makes DequeueInputBuffer time out as if all the
// input slots were busy.
func (s *Session) SetInputAvailable(available bool) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.inputUnavailable = !available
	s.notifyLocked()
}

// SetOutputPaused(true) holds the decoded outputs inside the codec.
func (s *Session) SetOutputPaused(paused bool) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.outputPaused = paused
	s.notifyLocked()
}

// SetQueueError makes QueueInputBuffer fail with err (nil resets).
func (s *Session) SetQueueError(err error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.queueErr = err
}
