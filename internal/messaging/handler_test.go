package messaging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabeastttt/test-demo/internal/conversation"
	"github.com/dabeastttt/test-demo/pkg/logging"
)

type fakeMachine struct {
	missedCalls []string
	voicemails  map[string]string
	smsBodies   map[string]string
	outcome     conversation.Outcome
}

func newFakeMachine() *fakeMachine {
	return &fakeMachine{
		voicemails: map[string]string{},
		smsBodies:  map[string]string{},
	}
}

func (m *fakeMachine) HandleMissedCall(_ context.Context, callerID string) conversation.Outcome {
	m.missedCalls = append(m.missedCalls, callerID)
	return m.outcome
}

func (m *fakeMachine) HandleVoicemail(_ context.Context, callerID, transcription string) conversation.Outcome {
	m.voicemails[callerID] = transcription
	return m.outcome
}

func (m *fakeMachine) HandleSMS(_ context.Context, callerID, body string) conversation.Outcome {
	m.smsBodies[callerID] = body
	return m.outcome
}

type fakeDispatcher struct {
	dispatched []conversation.Message
}

func (d *fakeDispatcher) Dispatch(_ context.Context, msgs []conversation.Message) int {
	d.dispatched = append(d.dispatched, msgs...)
	return len(msgs)
}

type fakeFetcher struct {
	audio []byte
	err   error
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.audio, f.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (t *fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return t.text, t.err
}

func newTestHandler(machine *fakeMachine, dispatcher *fakeDispatcher, fetcher *fakeFetcher, stt *fakeTranscriber) *Handler {
	cfg := HandlerConfig{TradieName: "Dave's Plumbing"}
	var rec recordingFetcher
	if fetcher != nil {
		rec = fetcher
	}
	logger := logging.NewWithWriter("error", io.Discard)
	if stt != nil {
		return NewHandler(cfg, machine, dispatcher, rec, stt, nil, logger)
	}
	return NewHandler(cfg, machine, dispatcher, rec, nil, nil, logger)
}

func postForm(handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestCallStatusMissedCallTriggersFlow(t *testing.T) {
	machine := newFakeMachine()
	machine.outcome = conversation.Outcome{
		Messages: []conversation.Message{
			{To: "+61412345678", Body: "hi", Kind: conversation.KindCallerReply},
			{To: "+61499999999", Body: "alert", Kind: conversation.KindOwnerAlert},
		},
		Changed: true,
	}
	dispatcher := &fakeDispatcher{}
	h := newTestHandler(machine, dispatcher, nil, nil)

	rr := postForm(h.CallStatus, "/webhooks/twilio/call-status", url.Values{
		"CallStatus": {"no-answer"},
		"From":       {"0412345678"},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, machine.missedCalls, 1)
	assert.Equal(t, "+61412345678", machine.missedCalls[0])
	assert.Len(t, dispatcher.dispatched, 2)
}

func TestCallStatusIgnoresAnsweredCalls(t *testing.T) {
	machine := newFakeMachine()
	dispatcher := &fakeDispatcher{}
	h := newTestHandler(machine, dispatcher, nil, nil)

	for _, status := range []string{"completed", "in-progress", "ringing"} {
		rr := postForm(h.CallStatus, "/webhooks/twilio/call-status", url.Values{
			"CallStatus": {status},
			"From":       {"0412345678"},
		})
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Empty(t, machine.missedCalls)
}

func TestCallStatusAcksMalformedPayload(t *testing.T) {
	machine := newFakeMachine()
	h := newTestHandler(machine, &fakeDispatcher{}, nil, nil)

	rr := postForm(h.CallStatus, "/webhooks/twilio/call-status", url.Values{
		"CallStatus": {"no-answer"},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, machine.missedCalls)
}

func TestVoiceReturnsRecordingTwiML(t *testing.T) {
	h := newTestHandler(newFakeMachine(), &fakeDispatcher{}, nil, nil)

	rr := postForm(h.Voice, "/webhooks/twilio/voice", url.Values{})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/xml", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "<Say")
	assert.Contains(t, body, "Dave&#39;s Plumbing")
	assert.Contains(t, body, `action="/webhooks/twilio/voicemail"`)
	assert.Contains(t, body, `maxLength="60"`)
}

func TestVoicemailTranscribesAndRelays(t *testing.T) {
	machine := newFakeMachine()
	dispatcher := &fakeDispatcher{}
	fetcher := &fakeFetcher{audio: []byte("audio")}
	stt := &fakeTranscriber{text: "burst pipe in the kitchen"}
	h := newTestHandler(machine, dispatcher, fetcher, stt)

	rr := postForm(h.Voicemail, "/webhooks/twilio/voicemail", url.Values{
		"RecordingUrl": {"https://api.twilio.com/rec/RE1"},
		"From":         {"0412345678"},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "burst pipe in the kitchen", machine.voicemails["+61412345678"])
}

func TestVoicemailDegradesWhenFetchFails(t *testing.T) {
	machine := newFakeMachine()
	fetcher := &fakeFetcher{err: errors.New("boom")}
	stt := &fakeTranscriber{text: "never reached"}
	h := newTestHandler(machine, &fakeDispatcher{}, fetcher, stt)

	rr := postForm(h.Voicemail, "/webhooks/twilio/voicemail", url.Values{
		"RecordingUrl": {"https://api.twilio.com/rec/RE1"},
		"From":         {"0412345678"},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	text, ok := machine.voicemails["+61412345678"]
	require.True(t, ok)
	assert.Empty(t, text)
}

func TestVoicemailRejectsMissingFields(t *testing.T) {
	h := newTestHandler(newFakeMachine(), &fakeDispatcher{}, nil, nil)

	rr := postForm(h.Voicemail, "/webhooks/twilio/voicemail", url.Values{
		"From": {"0412345678"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postForm(h.Voicemail, "/webhooks/twilio/voicemail", url.Values{
		"RecordingUrl": {"https://api.twilio.com/rec/RE1"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSMSRunsTransitionAndAcksEmptyTwiML(t *testing.T) {
	machine := newFakeMachine()
	h := newTestHandler(machine, &fakeDispatcher{}, nil, nil)

	rr := postForm(h.SMS, "/webhooks/twilio/sms", url.Values{
		"From": {"0412345678"},
		"Body": {"It's Sarah, hot water is out"},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, twimlEmpty, rr.Body.String())
	assert.Equal(t, "It's Sarah, hot water is out", machine.smsBodies["+61412345678"])
}

func TestSMSRejectsMissingFields(t *testing.T) {
	h := newTestHandler(newFakeMachine(), &fakeDispatcher{}, nil, nil)

	rr := postForm(h.SMS, "/webhooks/twilio/sms", url.Values{"Body": {"hello"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postForm(h.SMS, "/webhooks/twilio/sms", url.Values{"From": {"0412345678"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliverDropsCallerRepliesToNonMobiles(t *testing.T) {
	machine := newFakeMachine()
	machine.outcome = conversation.Outcome{
		Messages: []conversation.Message{
			{To: "+14155550100", Body: "caller reply", Kind: conversation.KindCallerReply},
			{To: "+14155550100", Body: "owner alert", Kind: conversation.KindOwnerAlert},
		},
		Changed: true,
	}
	dispatcher := &fakeDispatcher{}
	h := newTestHandler(machine, dispatcher, nil, nil)

	postForm(h.SMS, "/webhooks/twilio/sms", url.Values{
		"From": {"0412345678"},
		"Body": {"hi"},
	})

	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, conversation.KindOwnerAlert, dispatcher.dispatched[0].Kind)
}

func TestWebhooksRejectInvalidSignature(t *testing.T) {
	machine := newFakeMachine()
	h := NewHandler(HandlerConfig{WebhookSecret: "tok"}, machine, &fakeDispatcher{}, nil, nil, nil, logging.NewWithWriter("error", io.Discard))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms", strings.NewReader("From=0412345678&Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "bogus")
	rr := httptest.NewRecorder()
	h.SMS(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, machine.smsBodies)
}
