// Package functions declares the tools offered to the live model and
// executes the calls it makes.
package functions

import (
	"fmt"
	"strings"
)

// Call is a parsed tool invocation. The set of implementations is closed:
// SystemControl, Communication, AppControl and Unknown.
type Call interface {
	ToolName() string
	isCall()
}

// SystemControl is a diagnostic or maintenance command. It is simulated.
type SystemControl struct {
	Command string
	Target  string
}

// Communication places a call or sends a message to a contact.
type Communication struct {
	Action         string
	ContactName    string
	MessageContent string
}

// AppControl opens an app, optionally with an in-app search or context.
type AppControl struct {
	AppName string
	Context string
}

// Unknown is a call to a tool that was never declared.
type Unknown struct {
	Name string
}

func (SystemControl) ToolName() string { return NameSystemControl }
func (Communication) ToolName() string { return NameCommunication }
func (AppControl) ToolName() string    { return NameAppControl }
func (u Unknown) ToolName() string     { return u.Name }

func (SystemControl) isCall() {}
func (Communication) isCall() {}
func (AppControl) isCall()    {}
func (Unknown) isCall()       {}

// Parse converts a raw tool call into its typed variant.
// Missing required arguments are an error; unknown names are not.
func Parse(name string, args map[string]any) (Call, error) {
	switch name {
	case NameSystemControl:
		cmd := stringArg(args, "command")
		if cmd == "" {
			return nil, fmt.Errorf("%s: missing 'command'", name)
		}
		return SystemControl{Command: cmd, Target: stringArg(args, "target")}, nil

	case NameCommunication:
		c := Communication{
			Action:         stringArg(args, "action"),
			ContactName:    stringArg(args, "contactName"),
			MessageContent: stringArg(args, "messageContent"),
		}
		if c.Action == "" {
			return nil, fmt.Errorf("%s: missing 'action'", name)
		}
		if c.ContactName == "" {
			return nil, fmt.Errorf("%s: missing 'contactName'", name)
		}
		return c, nil

	case NameAppControl:
		a := AppControl{AppName: stringArg(args, "appName"), Context: stringArg(args, "context")}
		if a.AppName == "" {
			return nil, fmt.Errorf("%s: missing 'appName'", name)
		}
		return a, nil
	}
	return Unknown{Name: name}, nil
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
