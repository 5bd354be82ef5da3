// Package device turns symbolic device actions ("call Sarah", "open
// spotify") into deep-links and hands them to a Navigator.
package device

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Action is a device-level operation requested by the assistant.
type Action string

const (
	ActionLaunch      Action = "launch"
	ActionCall        Action = "call"
	ActionMessage     Action = "message"
	ActionChatMessage Action = "chat-message"
)

// ParseAction maps the names the model uses onto an Action.
// Unrecognised names are returned unchanged and fail at dispatch.
func ParseAction(name string) Action {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "launch", "open":
		return ActionLaunch
	case "call", "dial":
		return ActionCall
	case "message", "sms", "text":
		return ActionMessage
	case "chat-message", "whatsapp", "chat":
		return ActionChatMessage
	}
	return Action(name)
}

// Result reports the outcome of a device action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// Navigator opens a deep-link on the host device. Navigation is
// fire-and-forget: a nil error means the link was handed off, not that the
// target app opened.
type Navigator interface {
	Navigate(ctx context.Context, link string) error
}

// NavigatorFunc adapts a function to a Navigator.
type NavigatorFunc func(ctx context.Context, link string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, link string) error {
	return f(ctx, link)
}

// Dispatcher resolves targets against a contact directory and app registry.
type Dispatcher struct {
	Contacts  []Contact
	Apps      []App
	Navigator Navigator
}

// NewDispatcher returns a dispatcher over the default directory and registry.
func NewDispatcher(nav Navigator) *Dispatcher {
	return &Dispatcher{
		Contacts:  DefaultContacts(),
		Apps:      DefaultApps(),
		Navigator: nav,
	}
}

// PerformAction resolves and opens the deep-link for action on target.
// payload is the message body or in-app search term, if any.
// It never panics; every failure is reported in the Result.
func (d *Dispatcher) PerformAction(ctx context.Context, action Action, target, payload string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Success: false, Message: fmt.Sprintf("Device bridge error: %v", r)}
		}
	}()

	if action == ActionLaunch {
		app, ok := d.FindApp(target)
		if !ok {
			return Result{Message: fmt.Sprintf("App protocol for %s not found in local database.", target)}
		}
		return d.open(ctx, app.Link(payload), fmt.Sprintf("Launching %s...", target))
	}

	switch action {
	case ActionCall, ActionMessage, ActionChatMessage:
	default:
		return Result{Message: "Unknown protocol."}
	}

	contact, found := d.FindContact(target)
	number := contact.Number
	name := contact.Name
	if !found {
		number = normalizeNumber(target)
		name = number
	}
	if number == "" {
		return Result{Message: fmt.Sprintf("Contact %s not found.", target)}
	}

	switch action {
	case ActionCall:
		return d.open(ctx, "tel:"+number, fmt.Sprintf("Dialing %s...", name))
	case ActionMessage:
		return d.open(ctx, "sms:"+number+"?body="+escape(payload), fmt.Sprintf("Opening SMS to %s...", name))
	default:
		return d.open(ctx, "https://wa.me/"+strings.TrimPrefix(number, "+")+"?text="+escape(payload),
			fmt.Sprintf("Opening WhatsApp chat with %s...", name))
	}
}

func (d *Dispatcher) open(ctx context.Context, link, message string) Result {
	if d.Navigator != nil {
		if err := d.Navigator.Navigate(ctx, link); err != nil {
			return Result{Message: fmt.Sprintf("Device bridge error: %v", err), URL: link}
		}
	}
	return Result{Success: true, Message: message, URL: link}
}

// FindContact returns the first contact whose name contains name,
// ignoring case.
func (d *Dispatcher) FindContact(name string) (Contact, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Contact{}, false
	}
	for _, c := range d.Contacts {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			return c, true
		}
	}
	return Contact{}, false
}

// FindApp returns the first registered app whose key contains target or is
// contained in it, ignoring case. When no key matches that way, the first key
// that target abbreviates ("yt" for youtube) wins.
func (d *Dispatcher) FindApp(target string) (App, bool) {
	needle := strings.ToLower(strings.TrimSpace(target))
	if needle == "" {
		return App{}, false
	}
	for _, a := range d.Apps {
		if strings.Contains(a.Key, needle) || strings.Contains(needle, a.Key) {
			return a, true
		}
	}
	for _, a := range d.Apps {
		if abbreviates(needle, a.Key) {
			return a, true
		}
	}
	return App{}, false
}

// abbreviates reports whether short is a subsequence of key starting at
// key's first letter.
func abbreviates(short, key string) bool {
	if len(short) < 2 || short[0] != key[0] {
		return false
	}
	i := 0
	for j := 0; j < len(key) && i < len(short); j++ {
		if key[j] == short[i] {
			i++
		}
	}
	return i == len(short)
}

// normalizeNumber keeps digits and a single leading '+'.
func normalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	n := b.String()
	if n == "+" {
		return ""
	}
	return n
}

// escape matches encodeURIComponent: spaces become %20, not '+'.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
