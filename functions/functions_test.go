package functions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/room4-2/holoassist/device"
)

type links struct{ got []string }

func (l *links) Navigate(_ context.Context, link string) error {
	l.got = append(l.got, link)
	return nil
}

func TestParse(t *testing.T) {
	call, err := Parse(NameCommunication, map[string]any{"action": "call", "contactName": "Boss"})
	if err != nil {
		t.Fatal(err)
	}
	c, ok := call.(Communication)
	if !ok || c.Action != "call" || c.ContactName != "Boss" {
		t.Errorf("call=%#v", call)
	}

	call, err = Parse(NameSystemControl, map[string]any{"command": "diagnostics"})
	if err != nil {
		t.Fatal(err)
	}
	if s := call.(SystemControl); s.Command != "diagnostics" || s.Target != "" {
		t.Errorf("call=%#v", s)
	}

	call, err = Parse("selfDestruct", nil)
	if err != nil {
		t.Fatal(err)
	}
	if u, ok := call.(Unknown); !ok || u.ToolName() != "selfDestruct" {
		t.Errorf("call=%#v", call)
	}
}

func TestParseMissingArgs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{NameSystemControl, map[string]any{}},
		{NameCommunication, map[string]any{"action": "call"}},
		{NameCommunication, map[string]any{"contactName": "Boss"}},
		{NameAppControl, map[string]any{"context": "x"}},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.name, tt.args); err == nil {
			t.Errorf("%s %v: expected error", tt.name, tt.args)
		}
	}
}

func TestExecute(t *testing.T) {
	nav := &links{}
	e := NewExecutor(device.NewDispatcher(nav), nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		args   map[string]any
		status string
		detail string
	}{
		{NameSystemControl, map[string]any{"command": "scan_network"}, StatusOK, "scan_network completed successfully."},
		{NameCommunication, map[string]any{"action": "call", "contactName": "Boss"}, StatusOK, "Dialing Boss..."},
		{NameCommunication, map[string]any{"action": "call", "contactName": "NoSuchPerson"}, StatusFailed, "Contact NoSuchPerson not found."},
		{NameCommunication, map[string]any{"action": "whatsapp", "contactName": "Tony", "messageContent": "hey"}, StatusOK, "Opening WhatsApp chat with Tony..."},
		{NameAppControl, map[string]any{"appName": "Spotify", "context": "Imagine Dragons"}, StatusOK, "Launching Spotify..."},
		{NameAppControl, map[string]any{"appName": "Notepad"}, StatusFailed, "App protocol for Notepad not found in local database."},
		{NameAppControl, map[string]any{}, StatusFailed, "missing 'appName'"},
		{"selfDestruct", nil, StatusFailed, "Unknown command"},
	}
	for _, tt := range tests {
		res := e.Execute(ctx, tt.name, tt.args)
		if res.Status != tt.status || !strings.Contains(res.Details, tt.detail) {
			t.Errorf("%s %v: res=%+v", tt.name, tt.args, res)
		}
	}
	if len(nav.got) != 3 {
		t.Errorf("navigated=%v", nav.got)
	}
}

func TestExecuteWithoutDevice(t *testing.T) {
	e := NewExecutor(nil, nil)
	res := e.Execute(context.Background(), NameAppControl, map[string]any{"appName": "maps"})
	if res.Status != StatusFailed {
		t.Errorf("res=%+v", res)
	}
}

func TestExecuteNavigatorError(t *testing.T) {
	d := device.NewDispatcher(device.NavigatorFunc(func(context.Context, string) error {
		return errors.New("offline")
	}))
	res := NewExecutor(d, nil).Execute(context.Background(), NameCommunication,
		map[string]any{"action": "sms", "contactName": "Home"})
	if res.Status != StatusFailed || !strings.Contains(res.Details, "offline") {
		t.Errorf("res=%+v", res)
	}
}

func TestResultResponse(t *testing.T) {
	resp := Result{Status: StatusOK, Details: "done"}.Response()
	inner, ok := resp["result"].(map[string]any)
	if !ok || inner["status"] != StatusOK || inner["details"] != "done" {
		t.Errorf("resp=%v", resp)
	}
}

func TestToolsDeclareEveryName(t *testing.T) {
	tools := Tools()
	if len(tools) != 1 {
		t.Fatalf("tools=%d", len(tools))
	}
	var names []string
	for _, fd := range tools[0].FunctionDeclarations {
		names = append(names, fd.Name)
	}
	want := []string{NameSystemControl, NameCommunication, NameAppControl}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("names=%v", names)
	}
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt([]string{"Boss", "Home"}, []string{"youtube"})
	if !strings.Contains(p, "Boss, Home") || !strings.Contains(p, "Supported Apps: youtube.") {
		t.Errorf("prompt=%s", p)
	}
	if !strings.Contains(p, "'"+NameAppControl+"'") {
		t.Error("prompt should name the app tool")
	}
}
