package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// ViewportSize returns the page viewport in CSS pixels.
func (s *Session) ViewportSize() (width, height int) {
	if size := s.page.ViewportSize(); size != nil {
		return size.Width, size.Height
	}
	return DefaultViewportWidth, DefaultViewportHeight
}

// CaptureViewport returns a PNG of the visible viewport.
func (s *Session) CaptureViewport() ([]byte, error) {
	data, err := s.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

// MouseClick clicks at page coordinates. button is left, right or middle.
func (s *Session) MouseClick(x, y float64, button string, count int) error {
	opts := playwright.MouseClickOptions{}
	if button != "" {
		b := playwright.MouseButton(button)
		opts.Button = &b
	}
	if count > 1 {
		opts.ClickCount = &count
	}
	if err := s.page.Mouse().Click(x, y, opts); err != nil {
		return fmt.Errorf("mouse click failed: %w", err)
	}
	return nil
}

// MouseMove moves the pointer to page coordinates.
func (s *Session) MouseMove(x, y float64) error {
	if err := s.page.Mouse().Move(x, y); err != nil {
		return fmt.Errorf("mouse move failed: %w", err)
	}
	return nil
}

// MouseWheel scrolls by the given deltas at the current pointer position.
func (s *Session) MouseWheel(dx, dy float64) error {
	if err := s.page.Mouse().Wheel(dx, dy); err != nil {
		return fmt.Errorf("mouse wheel failed: %w", err)
	}
	return nil
}

// TypeText types text into the focused element.
func (s *Session) TypeText(text string) error {
	if err := s.page.Keyboard().Type(text); err != nil {
		return fmt.Errorf("keyboard type failed: %w", err)
	}
	return nil
}

// PressKey presses a key or chord such as "Enter" or "Control+A".
func (s *Session) PressKey(key string) error {
	if err := s.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}
