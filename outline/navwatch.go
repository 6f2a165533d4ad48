package outline

// navWatcher samples the location identifier and reboots the session when
// it changes, covering client-side route changes that keep the document.
type navWatcher struct {
	e    *Engine
	last string
}

func (w *navWatcher) seed() {
	loc, err := w.e.doc.Location()
	if err != nil {
		w.e.log.Debug("outline: read location", "error", err)
		return
	}
	w.last = loc
}

func (w *navWatcher) sample() {
	if w.e.stopped {
		return
	}
	loc, err := w.e.doc.Location()
	if err != nil {
		w.e.log.Debug("outline: read location", "error", err)
		return
	}
	if loc == w.last {
		return
	}
	w.e.log.Info("outline: location changed", "from", w.last, "to", loc)
	w.last = loc
	w.e.reboot("navigation")
}
