package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxRecordingBytes caps a voicemail download; a 60s recording is well
// under this.
const maxRecordingBytes = 10 << 20

// RecordingFetcher downloads voicemail audio from Twilio recording URLs.
type RecordingFetcher struct {
	accountSID string
	authToken  string
	httpClient *http.Client
}

// NewRecordingFetcher builds a fetcher authenticated with the Twilio
// account credentials.
func NewRecordingFetcher(accountSID, authToken string) *RecordingFetcher {
	return &RecordingFetcher{
		accountSID: accountSID,
		authToken:  authToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Fetch downloads the recording into a temporary buffer. Callers own the
// returned bytes and must drop them once transcription completes or fails.
func (f *RecordingFetcher) Fetch(ctx context.Context, recordingURL string) ([]byte, error) {
	if recordingURL == "" {
		return nil, errors.New("messaging: recording url required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: build recording request: %w", err)
	}
	if f.accountSID != "" {
		req.SetBasicAuth(f.accountSID, f.authToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messaging: fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("messaging: recording fetch failed: status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes+1))
	if err != nil {
		return nil, fmt.Errorf("messaging: read recording: %w", err)
	}
	if len(audio) > maxRecordingBytes {
		return nil, errors.New("messaging: recording exceeds size limit")
	}
	if len(audio) == 0 {
		return nil, errors.New("messaging: recording is empty")
	}
	return audio, nil
}
