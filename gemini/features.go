package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/room4-2/holoassist/eventlog"
)

// Models used by the one-shot features.
const (
	ModelFastChat   = "gemini-2.5-flash-lite"
	ModelThinking   = "gemini-3-pro-preview"
	ModelMaps       = "gemini-2.5-flash"
	ModelVideo      = "veo-3.1-fast-generate-preview"
	ModelVision     = "gemini-3-pro-preview"
	ModelImageEdit  = "gemini-2.5-flash-image"
	ModelSpeech     = "gemini-2.5-flash-preview-tts"
	ModelTranscribe = "gemini-2.5-flash"

	ThinkingBudget = 32768
	SpeechVoice    = "Kore"
)

// Mode selects a one-shot feature.
type Mode string

const (
	ModeQuickChat  Mode = "QUICK_CHAT"
	ModeThinking   Mode = "THINKING"
	ModeMaps       Mode = "MAPS"
	ModeVeo        Mode = "VEO"
	ModeVision     Mode = "VISION"
	ModeScreen     Mode = "SCREEN"
	ModeEditing    Mode = "EDITING"
	ModeTTS        Mode = "TTS"
	ModeTranscribe Mode = "TRANSCRIBE"
)

// Modes lists every feature in display order.
var Modes = []Mode{
	ModeQuickChat, ModeThinking, ModeMaps, ModeVeo, ModeVision,
	ModeScreen, ModeEditing, ModeTTS, ModeTranscribe,
}

// ParseMode accepts a mode name in any case, with '-' or '_' separators.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

var (
	// ErrMediaRequired is returned when a mode that works on captured media
	// is run without any.
	ErrMediaRequired = errors.New("media required")
	// ErrNoOutput is returned when the model answered without the expected
	// image, audio or video.
	ErrNoOutput = errors.New("no output generated")
)

// Media is captured input: an uploaded file, a camera frame, a screenshot
// or a recording.
type Media struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// IsVideo reports whether the media is a video.
func (m *Media) IsVideo() bool {
	return m != nil && strings.HasPrefix(m.MIMEType, "video")
}

// LatLng is a caller position used to ground maps queries.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Request is one feature invocation.
type Request struct {
	Mode     Mode    `json:"mode"`
	Prompt   string  `json:"prompt"`
	Media    *Media  `json:"media,omitempty"`
	Location *LatLng `json:"location,omitempty"`
}

// Kind tells a client how to render a Result.
type Kind string

const (
	KindText  Kind = "text"
	KindMaps  Kind = "maps"
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Place is a grounding source returned with a maps answer.
type Place struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Result is the display form of a feature response.
type Result struct {
	Kind     Kind    `json:"type"`
	Text     string  `json:"content,omitempty"`
	ImageURI string  `json:"image,omitempty"`
	VideoURL string  `json:"video,omitempty"`
	Audio    string  `json:"audio,omitempty"` // base64 PCM, 24kHz mono
	Places   []Place `json:"chunks,omitempty"`
}

// MediaStore keeps generated files and returns a URL a client can fetch.
type MediaStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// backend is the slice of the genai client the features use.
type backend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	Download(ctx context.Context, video *genai.GeneratedVideo) ([]byte, error)
}

type sdkBackend struct {
	c *genai.Client
}

func (b sdkBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return b.c.Models.GenerateContent(ctx, model, contents, cfg)
}

func (b sdkBackend) GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return b.c.Models.GenerateVideos(ctx, model, prompt, image, cfg)
}

func (b sdkBackend) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return b.c.Operations.GetVideosOperation(ctx, op, nil)
}

func (b sdkBackend) Download(ctx context.Context, video *genai.GeneratedVideo) ([]byte, error) {
	return b.c.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(video), nil)
}

// Client runs the one-shot features. Each call is a single request; nothing
// is retried.
type Client struct {
	api   backend
	store MediaStore
	log   eventlog.Logger
	poll  time.Duration
}

// NewClient wraps a genai client. store receives generated videos; logger
// may be nil.
func NewClient(c *genai.Client, store MediaStore, logger eventlog.Logger) *Client {
	return newClient(sdkBackend{c: c}, store, logger)
}

func newClient(api backend, store MediaStore, logger eventlog.Logger) *Client {
	if logger == nil {
		logger = eventlog.Discard
	}
	return &Client{api: api, store: store, log: logger, poll: 5 * time.Second}
}

// Run executes req according to its mode and logs the outcome.
func (c *Client) Run(ctx context.Context, req Request) (Result, error) {
	c.log.Log(eventlog.Info, fmt.Sprintf("Executing %s...", req.Mode))
	res, err := c.run(ctx, req)
	if err != nil {
		c.log.Log(eventlog.Error, fmt.Sprintf("Error: %v", err))
		return Result{}, err
	}
	c.log.Log(eventlog.Success, "Task completed successfully")
	return res, nil
}

func (c *Client) run(ctx context.Context, req Request) (Result, error) {
	switch req.Mode {
	case ModeQuickChat:
		text, err := c.FastChat(ctx, req.Prompt)
		return Result{Kind: KindText, Text: text}, err

	case ModeThinking:
		text, err := c.ThinkingChat(ctx, req.Prompt)
		return Result{Kind: KindText, Text: text}, err

	case ModeMaps:
		text, places, err := c.QueryMaps(ctx, req.Prompt, req.Location)
		return Result{Kind: KindMaps, Text: text, Places: places}, err

	case ModeVeo:
		url, err := c.GenerateVideo(ctx, req.Prompt, req.Media)
		return Result{Kind: KindVideo, VideoURL: url}, err

	case ModeVision:
		if req.Media == nil {
			return Result{}, fmt.Errorf("%w: capture or upload an image first", ErrMediaRequired)
		}
		prompt := req.Prompt
		if prompt == "" {
			prompt = "Analyze this image."
			if req.Media.IsVideo() {
				prompt = "Analyze this video in detail."
			}
		}
		text, err := c.AnalyzeMedia(ctx, req.Media, prompt)
		return Result{Kind: KindText, Text: text}, err

	case ModeScreen:
		if req.Media == nil {
			return Result{}, fmt.Errorf("%w: share a screen capture first", ErrMediaRequired)
		}
		prompt := req.Prompt
		if prompt == "" {
			prompt = "Analyze this screen content."
		}
		text, err := c.AnalyzeMedia(ctx, req.Media, prompt)
		return Result{Kind: KindText, Text: text}, err

	case ModeEditing:
		if req.Media == nil {
			return Result{}, fmt.Errorf("%w: source image", ErrMediaRequired)
		}
		uri, err := c.EditImage(ctx, req.Media, req.Prompt)
		return Result{Kind: KindImage, ImageURI: uri}, err

	case ModeTTS:
		pcm, err := c.GenerateSpeech(ctx, req.Prompt)
		return Result{Kind: KindAudio, Audio: pcm}, err

	case ModeTranscribe:
		if req.Media == nil {
			return Result{}, fmt.Errorf("%w: audio file or recording", ErrMediaRequired)
		}
		text, err := c.TranscribeAudio(ctx, req.Media)
		return Result{Kind: KindText, Text: text}, err
	}
	return Result{}, fmt.Errorf("unknown mode %q", req.Mode)
}

// FastChat answers with the low-latency model.
func (c *Client) FastChat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.generate(ctx, ModelFastChat, textContents(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// ThinkingChat answers with the reasoning model at its maximum budget.
func (c *Client) ThinkingChat(ctx context.Context, prompt string) (string, error) {
	budget := int32(ThinkingBudget)
	resp, err := c.generate(ctx, ModelThinking, textContents(prompt), &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: &budget},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// QueryMaps answers with Google Maps grounding, biased towards loc when set.
func (c *Client) QueryMaps(ctx context.Context, query string, loc *LatLng) (string, []Place, error) {
	resp, err := c.generate(ctx, ModelMaps, textContents(query), mapsConfig(loc))
	if err != nil {
		return "", nil, err
	}
	return resp.Text(), groundingPlaces(resp), nil
}

func mapsConfig(loc *LatLng) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}},
	}
	if loc != nil {
		lat, lng := loc.Lat, loc.Lng
		cfg.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{Latitude: &lat, Longitude: &lng},
			},
		}
	}
	return cfg
}

func groundingPlaces(resp *genai.GenerateContentResponse) []Place {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var places []Place
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		switch {
		case chunk == nil:
		case chunk.Maps != nil:
			places = append(places, Place{Title: chunk.Maps.Title, URI: chunk.Maps.URI})
		case chunk.Web != nil:
			places = append(places, Place{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return places
}

// GenerateVideo renders a 720p 16:9 clip, optionally animating image, and
// returns the URL the stored video is served from. It blocks until the
// operation completes or ctx is done.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, image *Media) (string, error) {
	if c.store == nil {
		return "", errors.New("video generation needs a media store")
	}
	var img *genai.Image
	if image != nil {
		if prompt == "" {
			prompt = "Animated video"
		}
		mime := image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		img = &genai.Image{ImageBytes: image.Data, MIMEType: mime}
	}

	op, err := c.api.GenerateVideos(ctx, ModelVideo, prompt, img, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     "720p",
		AspectRatio:    "16:9",
	})
	if err != nil {
		return "", unwrapAPIError(err)
	}

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if op, err = c.api.GetVideosOperation(ctx, op); err != nil {
			return "", unwrapAPIError(err)
		}
	}
	if op.Error != nil {
		return "", fmt.Errorf("video generation failed: %v", op.Error["message"])
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return "", fmt.Errorf("%w: no video URI returned", ErrNoOutput)
	}

	generated := op.Response.GeneratedVideos[0]
	data := generated.Video.VideoBytes
	if len(data) == 0 {
		if data, err = c.api.Download(ctx, generated); err != nil {
			return "", fmt.Errorf("download video: %w", unwrapAPIError(err))
		}
	}
	mime := generated.Video.MIMEType
	if mime == "" {
		mime = "video/mp4"
	}
	return c.store.Put(ctx, uuid.NewString()+".mp4", mime, data)
}

// AnalyzeMedia describes an image or video.
func (c *Client) AnalyzeMedia(ctx context.Context, media *Media, prompt string) (string, error) {
	resp, err := c.generate(ctx, ModelVision, mediaContents(media, "", prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// EditImage applies prompt to an image and returns the result as a PNG data URI.
func (c *Client) EditImage(ctx context.Context, image *Media, prompt string) (string, error) {
	resp, err := c.generate(ctx, ModelImageEdit, mediaContents(image, "image/png", prompt), nil)
	if err != nil {
		return "", err
	}
	data := firstInlineData(resp)
	if data == nil {
		return "", fmt.Errorf("%w: no image generated", ErrNoOutput)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// GenerateSpeech speaks text and returns base64 PCM at 24kHz.
func (c *Client) GenerateSpeech(ctx context.Context, text string) (string, error) {
	resp, err := c.generate(ctx, ModelSpeech, textContents(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: SpeechVoice},
			},
		},
	})
	if err != nil {
		return "", err
	}
	data := firstInlineData(resp)
	if data == nil {
		return "", fmt.Errorf("%w: no audio generated", ErrNoOutput)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// TranscribeAudio returns a verbatim transcript of a recording.
func (c *Client) TranscribeAudio(ctx context.Context, recording *Media) (string, error) {
	resp, err := c.generate(ctx, ModelTranscribe, mediaContents(recording, "audio/wav", "Transcribe this audio exactly."), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := c.api.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, unwrapAPIError(err)
	}
	return resp, nil
}

func textContents(text string) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
}

// mediaContents puts the media part first, then the prompt.
func mediaContents(m *Media, defaultMIME, prompt string) []*genai.Content {
	mime := m.MIMEType
	if mime == "" {
		mime = defaultMIME
	}
	return []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(m.Data, mime),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)}
}

func firstInlineData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data
		}
	}
	return nil
}

func unwrapAPIError(err error) error {
	var e *apierror.APIError
	if errors.As(err, &e) {
		if inner := e.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}
