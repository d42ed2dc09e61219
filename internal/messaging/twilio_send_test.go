package messaging

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabeastttt/test-demo/pkg/logging"
)

func newTestSender(t *testing.T, handler http.HandlerFunc) *TwilioSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewTwilioSender("AC123", "tok", "+61400000000", logging.NewWithWriter("error", io.Discard))
	s.baseURL = srv.URL
	return s
}

func TestSendSMSPostsForm(t *testing.T) {
	var gotTo, gotBody string
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotTo = r.PostFormValue("To")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	})

	err := s.SendSMS(context.Background(), "+61412345678", "hello")
	require.NoError(t, err)
	assert.Equal(t, "+61412345678", gotTo)
	assert.Equal(t, "hello", gotBody)
}

func TestSendSMSRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := s.SendSMS(context.Background(), "+61412345678", "hello")
	assert.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendSMSDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": 21211, "message": "Invalid 'To' number", "status": 400}`))
	})

	err := s.SendSMS(context.Background(), "+61412345678", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendSMSValidatesInputs(t *testing.T) {
	s := NewTwilioSender("AC123", "tok", "+61400000000", logging.NewWithWriter("error", io.Discard))

	assert.Error(t, s.SendSMS(context.Background(), "", "hello"))
	assert.Error(t, s.SendSMS(context.Background(), "+61412345678", "  "))

	missing := NewTwilioSender("", "", "+61400000000", logging.NewWithWriter("error", io.Discard))
	assert.Error(t, missing.SendSMS(context.Background(), "+61412345678", "hello"))
}
