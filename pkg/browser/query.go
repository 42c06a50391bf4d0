package browser

import (
	"fmt"
	"math"
)

const countScript = `sel => document.querySelectorAll(sel).length`

const visibleScript = `sel => {
  const el = document.querySelector(sel);
  if (!el) return false;
  const style = window.getComputedStyle(el);
  return style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
}`

const textScript = `sel => {
  const el = document.querySelector(sel);
  return el ? el.textContent : null;
}`

const attributeScript = `([sel, name]) => {
  const el = document.querySelector(sel);
  return el ? el.getAttribute(name) : null;
}`

// Count returns the number of elements matching selector.
func (s *Session) Count(selector string) (int, error) {
	v, err := s.page.Evaluate(countScript, selector)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return toInt(v)
}

// Visible reports whether the first element matching selector is rendered: not
// display:none, not visibility:hidden and not fully transparent. A selector
// that matches nothing is not visible.
func (s *Session) Visible(selector string) (bool, error) {
	v, err := s.page.Evaluate(visibleScript, selector)
	if err != nil {
		return false, fmt.Errorf("visibility of %s: %w", selector, err)
	}
	visible, _ := v.(bool)
	return visible, nil
}

// Text returns the text content of the first element matching selector. ok is
// false when nothing matches.
func (s *Session) Text(selector string) (text string, ok bool, err error) {
	v, err := s.page.Evaluate(textScript, selector)
	if err != nil {
		return "", false, fmt.Errorf("text of %s: %w", selector, err)
	}
	text, ok = v.(string)
	return text, ok, nil
}

// Attribute returns the named attribute of the first element matching
// selector. ok is false when the element or the attribute is missing.
func (s *Session) Attribute(selector, name string) (value string, ok bool, err error) {
	v, err := s.page.Evaluate(attributeScript, []interface{}{selector, name})
	if err != nil {
		return "", false, fmt.Errorf("attribute %s of %s: %w", name, selector, err)
	}
	value, ok = v.(string)
	return value, ok, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("unexpected non-integer count %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
