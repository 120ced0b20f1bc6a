package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayflow/stayflow-backend/internal/config"
)

type graphServer struct {
	mu       sync.Mutex
	messages []map[string]interface{}
	uploads  int
	fileName string
}

func (g *graphServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v17.0/PNID/media":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whatsapp", r.FormValue("messaging_product"))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			_, _ = io.ReadAll(f)
			g.mu.Lock()
			g.uploads++
			g.fileName = hdr.Filename
			g.mu.Unlock()
			_, _ = w.Write([]byte(`{"id":"MEDIA123"}`))
		case "/v17.0/PNID/messages":
			var m map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
			g.mu.Lock()
			g.messages = append(g.messages, m)
			g.mu.Unlock()
			_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"unknown path","code":100}}`))
		}
	})
}

func newTestChannel(t *testing.T) (*CloudAPIChannel, *graphServer) {
	t.Helper()
	gs := &graphServer{}
	srv := httptest.NewServer(gs.handler(t))
	t.Cleanup(srv.Close)

	ch := NewCloudAPIChannel(config.WhatsAppConfig{
		Token:         "tok",
		PhoneNumberID: "PNID",
		APIBase:       srv.URL + "/v17.0",
		RatePerSec:    100,
	}, srv.Client())
	return ch, gs
}

func TestCloudAPISendText(t *testing.T) {
	ch, gs := newTestChannel(t)
	require.NoError(t, ch.SendText(context.Background(), "919876543210", "hello"))

	require.Len(t, gs.messages, 1)
	m := gs.messages[0]
	assert.Equal(t, "whatsapp", m["messaging_product"])
	assert.Equal(t, "919876543210", m["to"])
	assert.Equal(t, "text", m["type"])
	assert.Equal(t, "hello", m["text"].(map[string]interface{})["body"])
}

func TestCloudAPIUploadThenReference(t *testing.T) {
	ch, gs := newTestChannel(t)
	path := filepath.Join(t.TempDir(), "bill.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	require.NoError(t, ch.SendMedia(context.Background(), "919876543210", path, "March bill"))

	assert.Equal(t, 1, gs.uploads)
	assert.Equal(t, "bill.pdf", gs.fileName)
	require.Len(t, gs.messages, 1)
	m := gs.messages[0]
	assert.Equal(t, "document", m["type"])
	doc := m["document"].(map[string]interface{})
	assert.Equal(t, "MEDIA123", doc["id"])
	assert.Equal(t, "March bill", doc["caption"])
	assert.Equal(t, "bill.pdf", doc["filename"])
}

func TestCloudAPIMissingFileFailsBeforeSend(t *testing.T) {
	ch, gs := newTestChannel(t)
	err := ch.SendMedia(context.Background(), "919876543210", "/nonexistent/qr.jpeg", "")
	require.Error(t, err)
	assert.Equal(t, 0, gs.uploads)
	assert.Empty(t, gs.messages)
}

func TestInteractivePayloadButtonsAndList(t *testing.T) {
	p := interactivePayload("Choose", []string{"ADJUST", "REFUND"})
	assert.Equal(t, "button", p["type"])
	buttons := p["action"].(map[string]interface{})["buttons"].([]map[string]interface{})
	require.Len(t, buttons, 2)
	assert.Equal(t, map[string]string{"id": "btn_1", "title": "REFUND"}, buttons[1]["reply"])

	p = interactivePayload("How can we help?", []string{"Food", "Payment", "Maintenance", "Other"})
	assert.Equal(t, "list", p["type"])
	sections := p["action"].(map[string]interface{})["sections"].([]map[string]interface{})
	rows := sections[0]["rows"].([]map[string]string)
	assert.Len(t, rows, 4)
	assert.Equal(t, "Maintenance", rows[2]["title"])
}

func TestCloudAPINotReady(t *testing.T) {
	ch := NewCloudAPIChannel(config.WhatsAppConfig{APIBase: "http://unused"}, nil)
	assert.False(t, ch.Ready())
	assert.ErrorIs(t, ch.SendText(context.Background(), "1", "x"), ErrNotReady)
}

func TestCloudAPIGraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Re-engagement message","code":131047}}`))
	}))
	defer srv.Close()

	ch := NewCloudAPIChannel(config.WhatsAppConfig{Token: "tok", PhoneNumberID: "PNID", APIBase: srv.URL}, srv.Client())
	err := ch.SendText(context.Background(), "919876543210", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "131047")
}

func TestCloudAPIDownloadMedia(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v17.0/IMG1":
			_, _ = w.Write([]byte(`{"url":"` + srvURL + `/files/IMG1","mime_type":"image/png"}`))
		case "/files/IMG1":
			_, _ = w.Write([]byte("png-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	ch := NewCloudAPIChannel(config.WhatsAppConfig{Token: "tok", PhoneNumberID: "PNID", APIBase: srv.URL + "/v17.0"}, srv.Client())
	dir := t.TempDir()

	ref, err := ch.DownloadMedia(context.Background(), "IMG1", dir)
	require.NoError(t, err)
	assert.Equal(t, "IMG1", ref.ID)
	assert.Equal(t, "image/png", ref.MimeType)
	assert.Equal(t, ".png", filepath.Ext(ref.Path))

	data, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	missing, err := ch.DownloadMedia(context.Background(), "NOPE", dir)
	assert.Error(t, err)
	assert.Equal(t, "NOPE", missing.ID)
	assert.Empty(t, missing.Path)
}
