package device

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Contact is an entry in the contact directory.
type Contact struct {
	Name   string `yaml:"name" json:"name"`
	Number string `yaml:"number" json:"number"`
}

// App is a launchable application. Link builds its deep-link, embedding
// query where the scheme supports it.
type App struct {
	Key  string
	Link func(query string) string
}

// DefaultContacts is the simulated secure contact directory.
func DefaultContacts() []Contact {
	return []Contact{
		{Name: "Boss", Number: "15550101"},
		{Name: "Home", Number: "15550102"},
		{Name: "Emergency", Number: "911"},
		{Name: "Sarah", Number: "15550123"},
		{Name: "Tony", Number: "15550999"},
	}
}

// DefaultApps returns the app registry in match order.
func DefaultApps() []App {
	return []App{
		{Key: "whatsapp", Link: func(q string) string { return "whatsapp://send?text=" + escape(q) }},
		{Key: "youtube", Link: func(q string) string {
			if q == "" {
				return "vnd.youtube://"
			}
			return "vnd.youtube://results?search_query=" + escape(q)
		}},
		{Key: "spotify", Link: func(q string) string {
			if q == "" {
				return "spotify:"
			}
			return "spotify:search:" + escape(q)
		}},
		{Key: "maps", Link: func(q string) string { return "geo:0,0?q=" + escape(q) }},
		{Key: "instagram", Link: func(string) string { return "instagram://app" }},
		{Key: "twitter", Link: func(string) string { return "twitter://" }},
		{Key: "facebook", Link: func(string) string { return "fb://" }},
		{Key: "chrome", Link: func(q string) string {
			if q == "" {
				return "googlechrome://"
			}
			return "googlechrome://navigate?url=" + escape(q)
		}},
		{Key: "gmail", Link: func(string) string { return "googlegmail://" }},
		{Key: "calendar", Link: func(string) string { return "content://com.android.calendar/time/" }},
		{Key: "camera", Link: func(string) string { return "intent:#Intent;action=android.media.action.IMAGE_CAPTURE;end" }},
		{Key: "clock", Link: func(string) string { return "content://com.android.deskclock/clock" }},
	}
}

// AppKeys lists registry keys in match order.
func AppKeys(apps []App) []string {
	keys := make([]string, len(apps))
	for i, a := range apps {
		keys[i] = a.Key
	}
	return keys
}

// ContactNames lists directory names in declaration order.
func ContactNames(contacts []Contact) []string {
	names := make([]string, len(contacts))
	for i, c := range contacts {
		names[i] = c.Name
	}
	return names
}

type contactsFile struct {
	Contacts []Contact `yaml:"contacts"`
}

// ParseContacts reads a YAML contact directory:
//
//	contacts:
//	  - name: Boss
//	    number: "15550101"
func ParseContacts(data []byte) ([]Contact, error) {
	var f contactsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse contacts: %w", err)
	}
	for i, c := range f.Contacts {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("contact %d: missing name", i)
		}
		if normalizeNumber(c.Number) == "" {
			return nil, fmt.Errorf("contact %q: invalid number %q", c.Name, c.Number)
		}
		f.Contacts[i].Number = normalizeNumber(c.Number)
	}
	return f.Contacts, nil
}

// LoadContacts reads a YAML contact directory from path.
func LoadContacts(path string) ([]Contact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}
	return ParseContacts(data)
}
