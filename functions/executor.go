package functions

import (
	"context"
	"fmt"
	"strings"

	"github.com/room4-2/holoassist/device"
	"github.com/room4-2/holoassist/eventlog"
)

// Result statuses returned to the model.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Result is the payload of one tool response.
type Result struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// Response is the body sent back to the model, keyed as {"result": {...}}.
func (r Result) Response() map[string]any {
	return map[string]any{
		"result": map[string]any{
			"status":  r.Status,
			"details": r.Details,
		},
	}
}

// Executor runs tool calls against the device dispatcher.
type Executor struct {
	Device *device.Dispatcher
	Log    eventlog.Logger
}

// NewExecutor returns an executor; a nil logger discards entries.
func NewExecutor(d *device.Dispatcher, logger eventlog.Logger) *Executor {
	if logger == nil {
		logger = eventlog.Discard
	}
	return &Executor{Device: d, Log: logger}
}

// Execute runs a raw tool call and always returns a result, never an error,
// so the model can react to failures conversationally.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) Result {
	e.Log.Log(eventlog.Warning, fmt.Sprintf("Executing protocol: %s", name))

	call, err := Parse(name, args)
	if err != nil {
		e.Log.Log(eventlog.Error, err.Error())
		return Result{Status: StatusFailed, Details: err.Error()}
	}
	return e.Run(ctx, call)
}

// Run executes a parsed call.
func (e *Executor) Run(ctx context.Context, call Call) Result {
	switch c := call.(type) {
	case SystemControl:
		target := c.Target
		if target == "" {
			target = "general"
		}
		e.Log.Log(eventlog.Success, fmt.Sprintf("RUNNING: %s on %s", strings.ToUpper(c.Command), strings.ToUpper(target)))
		return Result{Status: StatusOK, Details: fmt.Sprintf("%s completed successfully.", c.Command)}

	case Communication:
		e.Log.Log(eventlog.Info, fmt.Sprintf("COMMS: %s -> %s", strings.ToUpper(c.Action), c.ContactName))
		return e.device(ctx, device.ParseAction(c.Action), c.ContactName, c.MessageContent)

	case AppControl:
		e.Log.Log(eventlog.Info, fmt.Sprintf("LAUNCH: %s", strings.ToUpper(c.AppName)))
		return e.device(ctx, device.ActionLaunch, c.AppName, c.Context)

	case Unknown:
		e.Log.Log(eventlog.Warning, fmt.Sprintf("Unknown function called: %s", c.Name))
		return Result{Status: StatusFailed, Details: "Unknown command"}
	}
	return Result{Status: StatusFailed, Details: "Unknown command"}
}

func (e *Executor) device(ctx context.Context, action device.Action, target, payload string) Result {
	if e.Device == nil {
		return Result{Status: StatusFailed, Details: "Device bridge unavailable."}
	}
	res := e.Device.PerformAction(ctx, action, target, payload)
	if !res.Success {
		e.Log.Log(eventlog.Error, res.Message)
		return Result{Status: StatusFailed, Details: res.Message}
	}
	e.Log.Log(eventlog.Success, res.Message)
	return Result{Status: StatusOK, Details: res.Message}
}
