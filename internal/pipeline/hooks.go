package pipeline

import (
	"fmt"

	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/export"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

// Hooks observe a run. Every field is optional. Lifecycle hooks that return a
// non-nil error (or panic) terminate the run; OnError and OnWarning are
// notifications only.
type Hooks struct {
	OnStart           func() error
	OnSectionStart    func(section docmodel.Section, index int) error
	OnSectionComplete func(section docmodel.Section, index int) error
	OnProgress        func(current, total int) error
	OnStreamStart     func(streamID string) error
	OnStreamData      func(data stream.SectionData) error
	OnStreamEnd       func(streamID string) error
	OnExportStart     func(format string) error
	OnExportComplete  func(result export.Result) error
	OnComplete        func(stats Stats) error
	OnError           func(err error, phase string)
	OnWarning         func(message, context string)
}

// guard runs fn, turning a panic into an error.
func guard(name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook %s panicked: %v", name, rec)
		}
	}()
	return fn()
}

func (h Hooks) start() error {
	if h.OnStart == nil {
		return nil
	}
	return guard("OnStart", h.OnStart)
}

func (h Hooks) sectionStart(s docmodel.Section, i int) error {
	if h.OnSectionStart == nil {
		return nil
	}
	return guard("OnSectionStart", func() error { return h.OnSectionStart(s, i) })
}

func (h Hooks) sectionComplete(s docmodel.Section, i int) error {
	if h.OnSectionComplete == nil {
		return nil
	}
	return guard("OnSectionComplete", func() error { return h.OnSectionComplete(s, i) })
}

func (h Hooks) progress(current, total int) error {
	if h.OnProgress == nil {
		return nil
	}
	return guard("OnProgress", func() error { return h.OnProgress(current, total) })
}

func (h Hooks) streamStart(id string) error {
	if h.OnStreamStart == nil {
		return nil
	}
	return guard("OnStreamStart", func() error { return h.OnStreamStart(id) })
}

func (h Hooks) streamData(d stream.SectionData) error {
	if h.OnStreamData == nil {
		return nil
	}
	return guard("OnStreamData", func() error { return h.OnStreamData(d) })
}

func (h Hooks) streamEnd(id string) error {
	if h.OnStreamEnd == nil {
		return nil
	}
	return guard("OnStreamEnd", func() error { return h.OnStreamEnd(id) })
}

func (h Hooks) exportStart(format string) error {
	if h.OnExportStart == nil {
		return nil
	}
	return guard("OnExportStart", func() error { return h.OnExportStart(format) })
}

func (h Hooks) exportComplete(r export.Result) error {
	if h.OnExportComplete == nil {
		return nil
	}
	return guard("OnExportComplete", func() error { return h.OnExportComplete(r) })
}

func (h Hooks) complete(s Stats) error {
	if h.OnComplete == nil {
		return nil
	}
	return guard("OnComplete", func() error { return h.OnComplete(s) })
}

// failed and warn swallow panics: a broken error handler must not mask the
// error it was handed.
func (h Hooks) failed(err error, phase string) {
	if h.OnError == nil {
		return
	}
	_ = guard("OnError", func() error {
		h.OnError(err, phase)
		return nil
	})
}

func (h Hooks) warn(message, context string) {
	if h.OnWarning == nil {
		return
	}
	_ = guard("OnWarning", func() error {
		h.OnWarning(message, context)
		return nil
	})
}
