package backend

import (
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Terminal implements Backend using tcell.
type Terminal struct {
	screen tcell.Screen
	mu     sync.Mutex
	status string
}

// NewTerminal creates a terminal backend.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{screen: screen}, nil
}

func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.Clear()
	return nil
}

func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Fini()
}

func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

// PollEvent blocks until the next terminal event. Shutdown unblocks it.
func (t *Terminal) PollEvent() Event {
	ev := t.screen.PollEvent()
	return convertEvent(ev)
}

// SetStatus draws text on the bottom row in reverse video. The change is
// not flushed until Show.
func (t *Terminal) SetStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = text
	t.drawStatusLocked()
}

func (t *Terminal) drawStatusLocked() {
	width, height := t.screen.Size()
	if height == 0 {
		return
	}
	row := height - 1
	style := tcell.StyleDefault.Reverse(true)

	col := 0
	for _, r := range t.status {
		if col >= width {
			break
		}
		t.screen.SetContent(col, row, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		t.screen.SetContent(col, row, ' ', nil, style)
	}
}

func (t *Terminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Show()
}

// convertEvent maps a tcell event onto the backend event model. A nil
// event means the screen was finalized.
func convertEvent(ev tcell.Event) Event {
	if ev == nil {
		return Event{Type: EventClosed}
	}

	switch tev := ev.(type) {
	case *tcell.EventKey:
		switch tev.Key() {
		case tcell.KeyCtrlC:
			return Event{Type: EventInterrupt}
		case tcell.KeyEnter:
			return Event{Type: EventKey, Key: KeyEnter}
		case tcell.KeyEscape:
			return Event{Type: EventKey, Key: KeyEscape}
		case tcell.KeyRune:
			return Event{Type: EventKey, Key: KeyRune, Rune: tev.Rune()}
		default:
			return Event{Type: EventNone}
		}
	case *tcell.EventResize:
		w, h := tev.Size()
		return Event{Type: EventResize, Width: w, Height: h}
	default:
		return Event{Type: EventNone}
	}
}
