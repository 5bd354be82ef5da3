package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/room4-2/holoassist/eventlog"
	"github.com/room4-2/holoassist/gemini"
)

var askCmd = &cobra.Command{
	Use:   "ask <mode> [prompt...]",
	Short: "Run a one-shot feature",
	Long: `Run one feature request and print the result.

Modes: QUICK_CHAT, THINKING, MAPS, VEO, VISION, SCREEN, EDITING, TTS, TRANSCRIBE
(case-insensitive; '-' works as a separator).

Generated images, speech and videos are written to --out.

Examples:
  assist ask quick-chat "What's the capital of Peru?"
  assist ask maps "coffee nearby" --lat 40.74 --lng -73.99
  assist ask vision -f photo.jpg "What is in this picture?"
  assist ask editing -f photo.png "Add a retro filter" -o edited.png
  assist ask tts "Systems nominal." -o reply.pcm
  assist ask veo "A neon city at night" -o clip.mp4`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPIKey(); err != nil {
			return err
		}
		mode, err := gemini.ParseMode(args[0])
		if err != nil {
			return err
		}
		req := gemini.Request{Mode: mode, Prompt: strings.Join(args[1:], " ")}

		file, _ := cmd.Flags().GetString("file")
		if file != "" {
			if req.Media, err = loadMedia(file); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lng, _ := cmd.Flags().GetFloat64("lng")
			req.Location = &gemini.LatLng{Lat: lat, Lng: lng}
		}
		out, _ := cmd.Flags().GetString("out")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return runAsk(ctx, req, out)
	},
}

func init() {
	askCmd.Flags().StringP("file", "f", "", "Image, video or audio file to send")
	askCmd.Flags().Float64("lat", 0, "Latitude for maps grounding")
	askCmd.Flags().Float64("lng", 0, "Longitude for maps grounding")
	askCmd.Flags().StringP("out", "o", "", "Where to write generated media")
	askCmd.Flags().Duration("timeout", 10*time.Minute, "Give up after this long")
}

func runAsk(ctx context.Context, req gemini.Request, out string) error {
	client, err := gemini.NewGenAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return err
	}

	ring := eventlog.NewRing(eventlog.DefaultLimit, "")
	ring.Subscribe(printEntry)

	res, err := gemini.NewClient(client, fileStore{path: out}, ring).Run(ctx, req)
	if err != nil {
		return err
	}

	if res.Text != "" {
		fmt.Println()
		fmt.Println(res.Text)
	}
	for _, p := range res.Places {
		fmt.Printf("%s %s\n", titleStyle.Render("• "+p.Title), dimStyle.Render(p.URI))
	}

	switch res.Kind {
	case gemini.KindImage:
		data, err := decodeDataURI(res.ImageURI)
		if err != nil {
			return err
		}
		return save(out, "image.png", data)
	case gemini.KindAudio:
		data, err := base64.StdEncoding.DecodeString(res.Audio)
		if err != nil {
			return err
		}
		if err := save(out, "speech.pcm", data); err != nil {
			return err
		}
		fmt.Println(dimStyle.Render("Play with: play -t raw -r 24000 -b 16 -c 1 -e signed-integer <file>"))
	case gemini.KindVideo:
		fmt.Println(titleStyle.Render("Video: " + res.VideoURL))
	}
	return nil
}

// fileStore writes generated videos to disk.
type fileStore struct {
	path string
}

func (s fileStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	p := s.path
	if p == "" {
		p = name
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", err
	}
	return p, nil
}

func save(path, fallback string, data []byte) error {
	if path == "" {
		path = fallback
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("Saved " + path))
	return nil
}

func loadMedia(path string) (*gemini.Media, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return &gemini.Media{Data: data, MIMEType: mimeType}, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	i := strings.Index(uri, ";base64,")
	if !strings.HasPrefix(uri, "data:") || i < 0 {
		return nil, fmt.Errorf("unexpected image reference %.32q", uri)
	}
	return base64.StdEncoding.DecodeString(uri[i+len(";base64,"):])
}
