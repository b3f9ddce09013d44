package session

import "sync"

// SelectionRange is a half-open [Start, End) range over the surface's
// serialized content.
type SelectionRange struct {
	Start int
	End   int
}

// ScrollOffset is the surface's scroll position.
type ScrollOffset struct {
	Top  float64
	Left float64
}

// Surface is the editable area the session synchronizes. The real rendering
// widget lives outside this core; the session only needs get/set access to
// its content, selection, focus and scroll state.
type Surface interface {
	Content() string
	SetContent(content string)
	Focused() bool
	// Selection returns the current selection and whether one exists.
	Selection() (SelectionRange, bool)
	SetSelection(r SelectionRange) error
	Scroll() ScrollOffset
	SetScroll(o ScrollOffset)
}

// Buffer is an in-memory Surface used by the headless agent and tests. Safe
// for use from the controller goroutine and the owner simultaneously.
type Buffer struct {
	mu        sync.Mutex
	content   string
	focused   bool
	selection *SelectionRange
	scroll    ScrollOffset

	// OnChange, when set, fires after every SetContent. It mimics the input
	// notifications a real editable widget emits when its content is
	// replaced from outside.
	OnChange func(content string)
}

func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

func (b *Buffer) SetContent(content string) {
	b.mu.Lock()
	b.content = content
	onChange := b.OnChange
	b.mu.Unlock()
	if onChange != nil {
		onChange(content)
	}
}

func (b *Buffer) Focused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focused
}

func (b *Buffer) SetFocused(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focused = v
}

func (b *Buffer) Scroll() ScrollOffset {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scroll
}

func (b *Buffer) SetScroll(o ScrollOffset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scroll = o
}

func (b *Buffer) Selection() (SelectionRange, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selection == nil {
		return SelectionRange{}, false
	}
	return *b.selection, true
}

func (b *Buffer) SetSelection(r SelectionRange) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.Start < 0 || r.End < r.Start || r.End > len(b.content) {
		return errSelectionOutOfRange
	}
	b.selection = &r
	return nil
}

// ClearSelection drops the current selection.
func (b *Buffer) ClearSelection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection = nil
}
