// Package transcribe converts voicemail audio to text.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Transcriber converts a recorded audio buffer to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// DeepgramTranscriber transcribes prerecorded audio via Deepgram's REST API.
type DeepgramTranscriber struct {
	api   *listenv1rest.Client
	model string
}

// NewDeepgramTranscriber creates a transcriber. model defaults to nova-2.
func NewDeepgramTranscriber(apiKey, model string) (*DeepgramTranscriber, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("transcribe: deepgram api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "nova-2"
	}
	c := listen.NewREST(apiKey, &interfaces.ClientOptions{})
	return &DeepgramTranscriber{api: listenv1rest.New(c), model: model}, nil
}

var _ Transcriber = (*DeepgramTranscriber)(nil)

// Transcribe submits the audio buffer and returns the best transcript. The
// buffer is only read; callers drop their reference after this returns so
// the recording is never retained.
func (t *DeepgramTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("transcribe: empty audio buffer")
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.model,
		SmartFormat: true,
		Punctuate:   true,
	}
	res, err := t.api.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		return "", fmt.Errorf("transcribe: deepgram request failed: %w", err)
	}

	if res == nil || len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return "", errors.New("transcribe: deepgram returned no transcript")
	}
	return strings.TrimSpace(res.Results.Channels[0].Alternatives[0].Transcript), nil
}
