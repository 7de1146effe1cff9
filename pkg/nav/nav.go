// Package nav abstracts browser-style navigation so flow logic can be
// exercised deterministically in tests and mounted behind different HTTP
// frameworks.
package nav

import "sync"

// Context is the navigation capability handed to every component that
// needs to move the user agent somewhere else.
type Context interface {
	// CurrentPath returns the path of the page being served.
	CurrentPath() string
	// Navigate sends the user agent to url, keeping the current entry in
	// history.
	Navigate(url string)
	// Replace sends the user agent to url, replacing the current entry.
	Replace(url string)
	// WriteDocument replaces the current document body, used for the SAML
	// POST binding where the provider returns an HTML form to submit.
	WriteDocument(html string)
}

// Recorder is a Context that records what happened, for tests.
type Recorder struct {
	mu   sync.Mutex
	Path string

	Navigations []string
	Replaced    []string
	Documents   []string
}

func (r *Recorder) CurrentPath() string { return r.Path }

func (r *Recorder) Navigate(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Navigations = append(r.Navigations, url)
}

func (r *Recorder) Replace(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replaced = append(r.Replaced, url)
}

func (r *Recorder) WriteDocument(html string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Documents = append(r.Documents, html)
}

// Last returns the most recent navigation of any kind, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.Navigations); n > 0 {
		return r.Navigations[n-1]
	}
	if n := len(r.Replaced); n > 0 {
		return r.Replaced[n-1]
	}
	return ""
}

// Count returns the total number of navigations applied.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Navigations) + len(r.Replaced) + len(r.Documents)
}
