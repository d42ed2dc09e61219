package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/dabeastttt/test-demo/internal/conversation"
)

type mockSMSSender struct {
	sent   []struct{ to, body string }
	failOn string
}

func (m *mockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if m.failOn != "" && to == m.failOn {
		return errors.New("mock SMS error")
	}
	m.sent = append(m.sent, struct{ to, body string }{to, body})
	return nil
}

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestDispatchSendsEverything(t *testing.T) {
	sms := &mockSMSSender{}
	d := NewDispatcher(sms, nil, "", nil)

	sent := d.Dispatch(context.Background(), []conversation.Message{
		{To: "+61412345678", Body: "hi", Kind: conversation.KindCallerReply},
		{To: "+61498765432", Body: "alert", Kind: conversation.KindOwnerAlert},
	})

	if sent != 2 || len(sms.sent) != 2 {
		t.Errorf("sent = %d, deliveries = %d", sent, len(sms.sent))
	}
}

func TestDispatchFailureDoesNotBlockOthers(t *testing.T) {
	sms := &mockSMSSender{failOn: "+61498765432"}
	d := NewDispatcher(sms, nil, "", nil)

	sent := d.Dispatch(context.Background(), []conversation.Message{
		{To: "+61498765432", Body: "alert", Kind: conversation.KindOwnerAlert},
		{To: "+61412345678", Body: "hi", Kind: conversation.KindCallerReply},
	})

	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if len(sms.sent) != 1 || sms.sent[0].to != "+61412345678" {
		t.Errorf("caller reply should still go out: %+v", sms.sent)
	}
}

func TestDispatchSkipsEmptyMessages(t *testing.T) {
	sms := &mockSMSSender{}
	d := NewDispatcher(sms, nil, "", nil)

	sent := d.Dispatch(context.Background(), []conversation.Message{
		{To: "", Body: "no destination", Kind: conversation.KindOwnerAlert},
		{To: "+61412345678", Body: "", Kind: conversation.KindCallerReply},
	})

	if sent != 0 || len(sms.sent) != 0 {
		t.Errorf("nothing should be sent: sent=%d deliveries=%d", sent, len(sms.sent))
	}
}

func TestOwnerAlertsMirroredToEmail(t *testing.T) {
	sms := &mockSMSSender{}
	email := &mockEmailSender{}
	d := NewDispatcher(sms, email, "owner@example.com", nil)

	d.Dispatch(context.Background(), []conversation.Message{
		{To: "+61412345678", Body: "hi", Kind: conversation.KindCallerReply},
		{To: "+61498765432", Body: "booking confirmed", Kind: conversation.KindOwnerAlert},
	})

	if len(email.sent) != 1 {
		t.Fatalf("email mirrors = %d, want 1", len(email.sent))
	}
	if email.sent[0].To != "owner@example.com" || email.sent[0].Body != "booking confirmed" {
		t.Errorf("email = %+v", email.sent[0])
	}
}

func TestEmailFailureDoesNotAffectSMSCount(t *testing.T) {
	sms := &mockSMSSender{}
	email := &mockEmailSender{callErr: errors.New("sendgrid down")}
	d := NewDispatcher(sms, email, "owner@example.com", nil)

	sent := d.Dispatch(context.Background(), []conversation.Message{
		{To: "+61498765432", Body: "alert", Kind: conversation.KindOwnerAlert},
	})

	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
}
