package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/room4-2/holoassist/device"
	"github.com/room4-2/holoassist/eventlog"
	"github.com/room4-2/holoassist/functions"
	"github.com/room4-2/holoassist/gemini"
	"github.com/room4-2/holoassist/live"
	"github.com/room4-2/holoassist/localaudio"
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Voice session on the local microphone and speakers",
	Long: `Start a realtime voice session using sox for audio input and output.

Deep-links the assistant opens are printed, and published over MQTT when
MQTT_BROKER is set.

Examples:
  assist talk
  assist talk --voice Kore`,
	RunE: func(cmd *cobra.Command, args []string) error {
		voice, _ := cmd.Flags().GetString("voice")
		if voice != "" {
			cfg.VoiceName = voice
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runTalk(ctx)
	},
}

func init() {
	talkCmd.Flags().String("voice", "", "Prebuilt voice name (default Zephyr)")
}

func runTalk(ctx context.Context) error {
	contacts, err := loadContacts()
	if err != nil {
		return err
	}

	ring := eventlog.NewRing(eventlog.DefaultLimit, "")
	ring.Subscribe(printEntry)

	nav := device.Navigators{device.NavigatorFunc(func(_ context.Context, link string) error {
		fmt.Println(titleStyle.Render("↗ " + link))
		return nil
	})}
	if cfg.MQTTBroker != "" {
		mqttNav := device.NewMQTTNavigator(device.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID + "-cli",
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		defer mqttNav.Close()
		nav = append(nav, mqttNav)
	}

	dispatcher := device.NewDispatcher(nav)
	dispatcher.Contacts = contacts

	dialer := gemini.NewDialer(gemini.LiveConfig{
		APIKey:       cfg.GeminiAPIKey,
		Model:        cfg.LiveModel,
		Voice:        cfg.VoiceName,
		SystemPrompt: functions.SystemPrompt(device.ContactNames(dispatcher.Contacts), device.AppKeys(dispatcher.Apps)),
		Tools:        functions.Tools(),
	}, "local")

	m := live.NewManager(live.DefaultOptions(cfg.GeminiAPIKey), dialer, localaudio.NewDevices(),
		functions.NewExecutor(dispatcher, ring), ring)

	ended := make(chan struct{}, 1)
	failed := make(chan error, 1)
	m.OnStateChange = func(s live.State) {
		if s == live.Disconnected {
			select {
			case ended <- struct{}{}:
			default:
			}
		}
	}
	m.OnError = func(err error) {
		select {
		case failed <- err:
		default:
		}
	}
	m.OnSpeaking = func(speaking bool) {
		if speaking {
			fmt.Println(dimStyle.Render("🎤 ..."))
		}
	}

	if err := m.Connect(ctx); err != nil {
		return err
	}
	fmt.Println(dimStyle.Render("Press Ctrl+C to end the session."))

	select {
	case <-ctx.Done():
		m.Disconnect()
		return nil
	case <-ended:
		return nil
	case err := <-failed:
		return err
	}
}
