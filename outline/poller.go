package outline

// poll is the fixed-period backstop for missed or throttled mutation
// notifications. It goes through the same skip decision as every other
// trigger, so a redundant tick costs one scan and no render.
func (e *Engine) poll() {
	if e.stopped {
		return
	}
	e.Rebuild(false)
}
