package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	// sqlite driver for the device store
	_ "github.com/mattn/go-sqlite3"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
)

// InboundHandler receives messages arriving on a channel
type InboundHandler func(ctx context.Context, msg models.InboundMessage)

// WhatsmeowChannel is the free channel: a linked-device WhatsApp Web session.
// It has no button primitive.
type WhatsmeowChannel struct {
	client   *whatsmeow.Client
	mediaDir string

	mu        sync.RWMutex
	onMessage InboundHandler
}

// NewWhatsmeowChannel opens the sqlite device store at storePath. Inbound
// images are saved to mediaDir.
func NewWhatsmeowChannel(storePath, mediaDir string) (*WhatsmeowChannel, error) {
	dbLog := waLog.Stdout("Database", "WARN", true)
	container, err := sqlstore.New("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", storePath), dbLog)
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: open store: %w", err)
	}
	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: load device: %w", err)
	}

	w := &WhatsmeowChannel{
		client:   whatsmeow.NewClient(device, waLog.Stdout("Client", "INFO", true)),
		mediaDir: mediaDir,
	}
	w.client.AddEventHandler(w.handleEvent)
	return w, nil
}

func (w *WhatsmeowChannel) Name() string { return "whatsmeow" }

func (w *WhatsmeowChannel) Ready() bool {
	return w.client != nil && w.client.IsConnected() && w.client.IsLoggedIn()
}

// OnMessage registers the inbound handler
func (w *WhatsmeowChannel) OnMessage(fn InboundHandler) {
	w.mu.Lock()
	w.onMessage = fn
	w.mu.Unlock()
}

// Start connects, printing a pairing QR code to the terminal when the device
// is not yet linked. It does not wait for pairing to finish.
func (w *WhatsmeowChannel) Start(ctx context.Context) error {
	if w.client.Store.ID != nil {
		logger.Info("📱 WhatsApp Web already linked", "jid", w.client.Store.ID.String())
		return w.client.Connect()
	}

	qrChan, err := w.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsmeow: qr channel: %w", err)
	}
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("whatsmeow: connect: %w", err)
	}

	go func() {
		for evt := range qrChan {
			if evt.Event == "code" {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
				logger.Info("📷 Scan this QR code with WhatsApp to link the free channel")
			} else {
				logger.Info("WhatsApp pairing event", "event", evt.Event)
			}
		}
	}()
	return nil
}

// Stop disconnects the session
func (w *WhatsmeowChannel) Stop() {
	if w.client != nil {
		w.client.Disconnect()
	}
}

func jidFor(to string) types.JID {
	return types.NewJID(strings.TrimPrefix(to, "+"), types.DefaultUserServer)
}

func (w *WhatsmeowChannel) SendText(ctx context.Context, to, body string) error {
	if !w.Ready() {
		return ErrNotReady
	}
	_, err := w.client.SendMessage(ctx, jidFor(to), &waProto.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return fmt.Errorf("whatsmeow: send text: %w", err)
	}
	return nil
}

func (w *WhatsmeowChannel) SendMedia(ctx context.Context, to, filePath, caption string) error {
	if !w.Ready() {
		return ErrNotReady
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("whatsmeow: read %s: %w", filePath, err)
	}
	mimeType := MimeType(filePath)

	var msg *waProto.Message
	if IsDocument(filePath) {
		up, err := w.client.Upload(ctx, data, whatsmeow.MediaDocument)
		if err != nil {
			return fmt.Errorf("whatsmeow: upload document: %w", err)
		}
		msg = &waProto.Message{DocumentMessage: &waProto.DocumentMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			FileName:      proto.String(filepath.Base(filePath)),
			Caption:       proto.String(caption),
		}}
	} else {
		up, err := w.client.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return fmt.Errorf("whatsmeow: upload image: %w", err)
		}
		msg = &waProto.Message{ImageMessage: &waProto.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Caption:       proto.String(caption),
		}}
	}

	if _, err := w.client.SendMessage(ctx, jidFor(to), msg); err != nil {
		return fmt.Errorf("whatsmeow: send media: %w", err)
	}
	return nil
}

func (w *WhatsmeowChannel) SendButtons(context.Context, string, string, []string) error {
	return ErrUnsupported
}

func (w *WhatsmeowChannel) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		w.handleMessage(v)
	case *events.Connected:
		logger.Info("✅ WhatsApp Web connected")
	case *events.Disconnected:
		logger.Warn("⚠️ WhatsApp Web disconnected")
	case *events.LoggedOut:
		logger.Warn("⚠️ WhatsApp Web device logged out, re-pairing required")
	case *events.PairSuccess:
		logger.Info("✅ WhatsApp Web paired", "jid", v.ID.String())
	}
}

func (w *WhatsmeowChannel) handleMessage(v *events.Message) {
	if v.Info.IsFromMe || v.Info.IsGroup || v.Message == nil {
		return
	}

	w.mu.RLock()
	fn := w.onMessage
	w.mu.RUnlock()
	if fn == nil {
		return
	}

	in := models.InboundMessage{
		From:      v.Info.Sender.User,
		Body:      MessageText(v.Message),
		MessageID: v.Info.ID,
		Channel:   w.Name(),
	}

	if img := v.Message.GetImageMessage(); img != nil {
		ref := &models.MediaRef{ID: v.Info.ID, MimeType: img.GetMimetype()}
		data, err := w.client.Download(img)
		if err != nil {
			logger.Warn("Failed to download inbound image", "from", in.From, "error", err)
		} else if path, err := saveInboundMedia(w.mediaDir, data, img.GetMimetype()); err != nil {
			logger.Warn("Failed to store inbound image", "from", in.From, "error", err)
		} else {
			ref.Path = path
		}
		in.Image = ref
	}

	go fn(context.Background(), in)
}

// MessageText returns the user-visible text of a message (body or caption)
func MessageText(m *waProto.Message) string {
	if m == nil {
		return ""
	}
	if c := m.GetConversation(); c != "" {
		return c
	}
	if ext := m.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := m.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if btn := m.GetButtonsResponseMessage(); btn != nil {
		return btn.GetSelectedDisplayText()
	}
	return ""
}

func saveInboundMedia(dir string, data []byte, mimeType string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := ".jpg"
	if strings.Contains(mimeType, "png") {
		ext = ".png"
	}
	path := filepath.Join(dir, "in_"+uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
