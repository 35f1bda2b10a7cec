package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohost/internal/config"
	"cohost/internal/models"
)

type fakeStore struct {
	messages    []models.Message
	listing     *models.Listing
	threadCount int
}

func (f *fakeStore) GetThreadMessages(_ context.Context, _ int64, _ int) ([]models.Message, error) {
	return f.messages, nil
}

func (f *fakeStore) CountGuestThreads(_ context.Context, _ string, _ int64) (int, error) {
	return f.threadCount, nil
}

func (f *fakeStore) GetListing(_ context.Context, _ int64) (*models.Listing, error) {
	return f.listing, nil
}

func fixtureStore() *fakeStore {
	sentAt := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	return &fakeStore{
		messages: []models.Message{
			{Direction: models.DirectionInbound, SenderName: "Maria", Content: "Is early check-in possible?", SentAt: sentAt},
		},
		listing:     &models.Listing{ID: 3, Name: "Sea View Loft"},
		threadCount: 2,
	}
}

func fixtureThread() *models.Thread {
	return &models.Thread{ID: 7, ExternalID: "T1", ListingID: 3, GuestName: "Maria Garcia"}
}

func newResponder(store Store, webhookURL string) *Responder {
	cfg := &config.Config{
		AIWebhookURL:  webhookURL,
		AIAPIKey:      "secret",
		AITimeout:     5 * time.Second,
		FallbackReply: "Thanks for your message! We'll get back to you shortly.",
	}
	return New(store, cfg)
}

func TestDraft_Webhook(t *testing.T) {
	var received draftRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]string{"response": "Yes, early check-in works from 1pm."})
	}))
	defer server.Close()

	r := newResponder(fixtureStore(), server.URL)
	reply, err := r.Draft(context.Background(), fixtureThread(), fixtureStore().messages[0])
	require.NoError(t, err)
	assert.Equal(t, "Yes, early check-in works from 1pm.", reply)

	assert.Equal(t, "T1", received.ConversationID)
	assert.Equal(t, "Maria Garcia", received.GuestName)
	assert.Equal(t, "Sea View Loft", received.PropertyName)
	assert.True(t, received.ReturningGuest)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "Please respond in English.", received.Instruction)
}

func TestDraft_WebhookAlternateFields(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{name: "message field", body: map[string]string{"message": "sure"}, want: "sure"},
		{name: "text field", body: map[string]string{"text": "sure"}, want: "sure"},
		{name: "content field", body: map[string]string{"content": "sure"}, want: "sure"},
		{name: "no usable field", body: map[string]string{"status": "ok"}, want: ""},
		{name: "blank reply", body: map[string]string{"response": "   "}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			r := newResponder(fixtureStore(), server.URL)
			reply, err := r.Draft(context.Background(), fixtureThread(), fixtureStore().messages[0])
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestDraft_WebhookError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	r := newResponder(fixtureStore(), server.URL)
	_, err := r.Draft(context.Background(), fixtureThread(), fixtureStore().messages[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestDraft_LanguageInstructionFollowsGuest(t *testing.T) {
	var received draftRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	}))
	defer server.Close()

	store := fixtureStore()
	latest := models.Message{Direction: models.DirectionInbound, Content: "שלום, אפשר צ'ק אין מוקדם?"}

	r := newResponder(store, server.URL)
	_, err := r.Draft(context.Background(), fixtureThread(), latest)
	require.NoError(t, err)
	assert.Contains(t, received.Instruction, "Hebrew")
}

func TestDraft_NoProviderConfigured(t *testing.T) {
	r := newResponder(fixtureStore(), "")
	reply, err := r.Draft(context.Background(), fixtureThread(), fixtureStore().messages[0])
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestFallback(t *testing.T) {
	r := newResponder(fixtureStore(), "")

	assert.Equal(t,
		"Hi Maria! Thanks for your message! We'll get back to you shortly.",
		r.Fallback("Maria Garcia"))
	assert.Equal(t,
		"Thanks for your message! We'll get back to you shortly.",
		r.Fallback(""))
}
