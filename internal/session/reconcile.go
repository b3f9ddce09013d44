package session

import (
	"errors"

	"go.uber.org/zap"
)

var errSelectionOutOfRange = errors.New("selection out of range")

// Reconciler applies inbound remote content to the local surface while
// preserving the user's scroll position and, when possible, their selection.
// Echo suppression happens in the controller before Apply is ever called.
type Reconciler struct {
	surface Surface
	log     *zap.Logger
}

func NewReconciler(surface Surface, log *zap.Logger) *Reconciler {
	return &Reconciler{surface: surface, log: log}
}

// Apply replaces the surface's content with remoteContent. The selection is
// captured only when the surface holds focus and a selection exists; scroll
// is captured unconditionally. Restore failures are logged and never abort
// the remaining steps. Applying the same content twice is idempotent.
func (r *Reconciler) Apply(remoteContent string) {
	if r.surface == nil {
		r.log.Debug("skipping remote update, surface not attached")
		return
	}

	var saved *SelectionRange
	if r.surface.Focused() {
		if sel, ok := r.surface.Selection(); ok {
			saved = &sel
		}
	}
	scroll := r.surface.Scroll()

	r.surface.SetContent(remoteContent)

	r.surface.SetScroll(scroll)
	if saved != nil && r.surface.Focused() {
		if err := r.surface.SetSelection(*saved); err != nil {
			r.log.Debug("could not restore selection", zap.Error(err))
		}
	}
}
