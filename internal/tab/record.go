// Package tab defines the tab record tracked by the navigator and the
// record-specialised MRU store built on package mru.
package tab

import "strings"

// Record is one browser tab as tracked by the store.
type Record struct {
	ID         int64  `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	FavIconURL string `json:"favIconUrl"`
	WindowID   int64  `json:"windowId"`
}

// Patch is a partial Record. Nil fields are left untouched when applied.
// The JSON shape follows the browser's tabs.onUpdated changeInfo object.
type Patch struct {
	URL        *string `json:"url,omitempty"`
	Title      *string `json:"title,omitempty"`
	Status     *string `json:"status,omitempty"`
	FavIconURL *string `json:"favIconUrl,omitempty"`
	WindowID   *int64  `json:"windowId,omitempty"`
}

// Empty reports whether the patch sets no field.
func (p *Patch) Empty() bool {
	return p == nil ||
		p.URL == nil && p.Title == nil && p.Status == nil &&
			p.FavIconURL == nil && p.WindowID == nil
}

// Apply merges the patch into r in place and returns r.
func (p *Patch) Apply(r *Record) *Record {
	if p == nil || r == nil {
		return r
	}
	if p.URL != nil {
		r.URL = *p.URL
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.FavIconURL != nil {
		r.FavIconURL = *p.FavIconURL
	}
	if p.WindowID != nil {
		r.WindowID = *p.WindowID
	}
	return r
}

// Fields returns the names of the fields set on the patch, for logging.
func (p *Patch) Fields() []string {
	if p == nil {
		return nil
	}
	var out []string
	if p.URL != nil {
		out = append(out, "url")
	}
	if p.Title != nil {
		out = append(out, "title")
	}
	if p.Status != nil {
		out = append(out, "status")
	}
	if p.FavIconURL != nil {
		out = append(out, "favIconUrl")
	}
	if p.WindowID != nil {
		out = append(out, "windowId")
	}
	return out
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Int64 returns a pointer to v, for building patches.
func Int64(v int64) *int64 { return &v }

// DisplayURL strips the http, https or ftp scheme from a URL for display.
func DisplayURL(url string) string {
	for _, scheme := range []string{"https://", "http://", "ftp://"} {
		if strings.HasPrefix(url, scheme) {
			return url[len(scheme):]
		}
	}
	return url
}
