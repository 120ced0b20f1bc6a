package delivery

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

func TestMessageText(t *testing.T) {
	assert.Equal(t, "RENT", MessageText(&waProto.Message{Conversation: proto.String("RENT")}))
	assert.Equal(t, "paid 7000 cash", MessageText(&waProto.Message{
		ExtendedTextMessage: &waProto.ExtendedTextMessage{Text: proto.String("paid 7000 cash")},
	}))
	assert.Equal(t, "aadhaar", MessageText(&waProto.Message{
		ImageMessage: &waProto.ImageMessage{Caption: proto.String("aadhaar")},
	}))
	assert.Equal(t, "", MessageText(nil))
}

func TestJIDFor(t *testing.T) {
	jid := jidFor("+919876543210")
	assert.Equal(t, "919876543210", jid.User)
	assert.Equal(t, types.DefaultUserServer, jid.Server)
}

func TestSaveInboundMedia(t *testing.T) {
	dir := t.TempDir()
	path, err := saveInboundMedia(dir, []byte("img"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".png"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)
}

func TestWhatsmeowWithoutClientIsNotReady(t *testing.T) {
	w := &WhatsmeowChannel{}
	assert.False(t, w.Ready())
	assert.ErrorIs(t, w.SendText(context.Background(), "919876543210", "hi"), ErrNotReady)
	assert.ErrorIs(t, w.SendButtons(context.Background(), "919876543210", "hi", nil), ErrUnsupported)
}
