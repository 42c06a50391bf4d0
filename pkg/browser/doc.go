// Package browser drives a single Chromium page through Playwright.
//
// A run opens exactly one Session: one browser, one context, one page. The
// session exposes the primitives the executor needs (navigation, selector
// waits, input, full-page screenshots and DOM queries) and the coordinate-level
// mouse and keyboard input used by agentic verification.
//
// Console messages and uncaught page errors are written to the session logger
// and never interrupt the run.
//
// # Lifecycle
//
//	session, err := browser.Open(browser.Options{Headless: true})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	err = session.Goto("http://localhost:3000", browser.DefaultNavigationTimeout)
//
// Close is safe to call repeatedly and on a nil *Session. When Open fails part
// way it releases whatever it had already created before returning.
package browser
