package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// WaitForSelector waits until selector is attached to the DOM.
func (s *Session) WaitForSelector(selector string, timeout time.Duration) error {
	state := playwright.WaitForSelectorState("attached")
	_, err := s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   &state,
		Timeout: milliseconds(timeout),
	})
	if err != nil {
		return wrapTimeout("wait for "+selector, err)
	}
	return nil
}

// Click clicks the first element matching selector.
func (s *Session) Click(selector string) error {
	if err := s.page.Click(selector); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

// Fill replaces the value of the input matching selector.
func (s *Session) Fill(selector, value string) error {
	if err := s.page.Fill(selector, value); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// Hover moves the mouse over the element matching selector.
func (s *Session) Hover(selector string) error {
	if err := s.page.Hover(selector); err != nil {
		return fmt.Errorf("hover failed: %w", err)
	}
	return nil
}

// ScrollBy scrolls the window vertically by dy pixels.
func (s *Session) ScrollBy(dy int) error {
	if _, err := s.page.Evaluate("dy => window.scrollBy(0, dy)", dy); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// Screenshot writes a full-page PNG to path.
func (s *Session) Screenshot(path string) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}
