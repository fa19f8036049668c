package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clipforge/internal/services"
)

const (
	defaultBaseURL       = "https://api.openai.com/v1"
	defaultModel         = "whisper-1"
	defaultHTTPTimeout   = 10 * time.Minute
	transcriptionsPath   = "/audio/transcriptions"
	verboseJSONFormat    = "verbose_json"
	httpProviderName     = "openai"
	maxErrorBodyReadSize = 64 * 1024
)

// HTTPProvider calls an OpenAI-compatible transcription endpoint.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// HTTPOption customizes an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if client != nil {
			p.http = client
		}
	}
}

// WithBaseURL overrides the default base URL.
func WithBaseURL(baseURL string) HTTPOption {
	return func(p *HTTPProvider) {
		if strings.TrimSpace(baseURL) != "" {
			p.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		}
	}
}

// WithModel overrides the transcription model.
func WithModel(model string) HTTPOption {
	return func(p *HTTPProvider) {
		if strings.TrimSpace(model) != "" {
			p.model = strings.TrimSpace(model)
		}
	}
}

// NewHTTPProvider constructs a provider authenticated with apiKey.
func NewHTTPProvider(apiKey string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL: defaultBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   defaultModel,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPProvider) Name() string { return httpProviderName }

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID         int      `json:"id"`
		Start      float64  `json:"start"`
		End        float64  `json:"end"`
		Text       string   `json:"text"`
		AvgLogprob *float64 `json:"avg_logprob"`
	} `json:"segments"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Transcribe uploads audio as multipart form data and decodes the verbose JSON response.
func (p *HTTPProvider) Transcribe(ctx context.Context, audio io.Reader, prompt string) (Result, error) {
	if p == nil {
		return Result{}, fmt.Errorf("transcription client: nil client")
	}
	if p.apiKey == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "transcribe", "http", "missing api key", nil)
	}

	body, contentType, done := p.multipartBody(audio, prompt)
	// The writer goroutine must stop reading audio before the caller may
	// rewind it for another attempt.
	defer func() {
		body.Close()
		<-done
	}()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+transcriptionsPath, body)
	if err != nil {
		return Result{}, fmt.Errorf("transcription client: build request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(request)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "transcribe", "http request", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, decodeAPIError(resp)
	}

	var parsed verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "transcribe", "decode response", "", err)
	}
	return p.toResult(parsed), nil
}

// multipartBody streams the form through a pipe. done is closed once the
// writer has finished with audio.
func (p *HTTPProvider) multipartBody(audio io.Reader, prompt string) (io.ReadCloser, string, <-chan struct{}) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := func() error {
			if err := writer.WriteField("model", p.model); err != nil {
				return err
			}
			if err := writer.WriteField("response_format", verboseJSONFormat); err != nil {
				return err
			}
			if strings.TrimSpace(prompt) != "" {
				if err := writer.WriteField("prompt", prompt); err != nil {
					return err
				}
			}
			field, err := writer.CreateFormFile("file", "audio.wav")
			if err != nil {
				return err
			}
			if _, err := io.Copy(field, audio); err != nil {
				return err
			}
			return writer.Close()
		}()
		pw.CloseWithError(err)
	}()
	return pr, writer.FormDataContentType(), done
}

func (p *HTTPProvider) toResult(parsed verboseResponse) Result {
	result := Result{
		Provider: p.Name(),
		Language: parsed.Language,
		Text:     strings.TrimSpace(parsed.Text),
		Segments: make([]Segment, 0, len(parsed.Segments)),
	}
	for _, seg := range parsed.Segments {
		out := Segment{
			ID:       "seg_" + strconv.Itoa(seg.ID),
			StartSec: seg.Start,
			EndSec:   seg.End,
			Text:     strings.TrimSpace(seg.Text),
		}
		if seg.AvgLogprob != nil {
			conf := math.Exp(*seg.AvgLogprob)
			out.Confidence = &conf
		}
		result.Segments = append(result.Segments, out)
	}
	return result
}

func decodeAPIError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyReadSize))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope errorEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil && (envelope.Error.Message != "" || envelope.Error.Type != "") {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		if envelope.Error.Code != nil {
			apiErr.Code = fmt.Sprint(envelope.Error.Code)
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(payload))
	}
	apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	return apiErr
}

// parseRetryAfter accepts delay-seconds or an HTTP date. Unusable values yield 0.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}
