package functions

import "google.golang.org/genai"

// Tool names as declared to the model.
const (
	NameSystemControl = "systemControl"
	NameCommunication = "communicationProtocol"
	NameAppControl    = "appControlProtocol"
)

// SystemControlDeclaration returns the function declaration for Gemini
func SystemControlDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameSystemControl,
		Description: "Execute system level commands or diagnostics.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"command": {
					Type:        genai.TypeString,
					Description: `The command to execute. Options: "diagnostics", "scan_network", "optimize_memory", "toggle_security", "get_weather"`,
				},
				"target": {
					Type:        genai.TypeString,
					Description: `Target specific subsystem if applicable (e.g., "firewall", "core_processor").`,
				},
			},
			Required: []string{"command"},
		},
	}
}

// CommunicationDeclaration returns the function declaration for Gemini
func CommunicationDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameCommunication,
		Description: "Initiate calls or send messages to contacts.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"action": {
					Type:        genai.TypeString,
					Description: `The action to perform. Values: "call", "sms", "whatsapp".`,
				},
				"contactName": {
					Type:        genai.TypeString,
					Description: "The name of the contact or phone number.",
				},
				"messageContent": {
					Type:        genai.TypeString,
					Description: "The content of the message (for sms/whatsapp).",
				},
			},
			Required: []string{"action", "contactName"},
		},
	}
}

// AppControlDeclaration returns the function declaration for Gemini
func AppControlDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameAppControl,
		Description: "Open external applications or perform actions within them.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"appName": {
					Type:        genai.TypeString,
					Description: "The name of the app to open (e.g., Youtube, Spotify, Maps, Chrome).",
				},
				"context": {
					Type:        genai.TypeString,
					Description: "Optional context or search query to perform inside the app (e.g., song name, location, search term).",
				},
			},
			Required: []string{"appName"},
		},
	}
}

// Tools bundles every declaration into the tool list sent at session setup.
func Tools() []*genai.Tool {
	return []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				SystemControlDeclaration(),
				CommunicationDeclaration(),
				AppControlDeclaration(),
			},
		},
	}
}
