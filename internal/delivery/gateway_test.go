package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type call struct {
	kind string
	to   string
	arg  string
}

type fakeChannel struct {
	name  string
	ready bool
	err   error

	mu    sync.Mutex
	calls []call
}

func (f *fakeChannel) Name() string { return f.name }
func (f *fakeChannel) Ready() bool  { return f.ready }

func (f *fakeChannel) record(kind, to, arg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: kind, to: to, arg: arg})
	return f.err
}

func (f *fakeChannel) SendText(_ context.Context, to, body string) error {
	return f.record(KindText, to, body)
}

func (f *fakeChannel) SendMedia(_ context.Context, to, filePath, _ string) error {
	return f.record(KindMedia, to, filePath)
}

func (f *fakeChannel) SendButtons(_ context.Context, to, body string, _ []string) error {
	return f.record(KindButtons, to, body)
}

func (f *fakeChannel) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func TestTextPrefersReadyFreeChannel(t *testing.T) {
	free := &fakeChannel{name: "free", ready: true}
	paid := &fakeChannel{name: "paid", ready: true}
	g := NewGateway(free, paid)

	g.SendText(context.Background(), "9876543210", "hello")

	assert.Equal(t, 1, free.count(KindText))
	assert.Equal(t, 0, paid.count(KindText))
	assert.Equal(t, "919876543210", free.calls[0].to)
}

func TestTextUsesPaidWhenFreeNotReady(t *testing.T) {
	free := &fakeChannel{name: "free", ready: false}
	paid := &fakeChannel{name: "paid", ready: true}
	g := NewGateway(free, paid)

	g.SendText(context.Background(), "919876543210", "hello")

	assert.Equal(t, 0, free.count(KindText))
	assert.Equal(t, 1, paid.count(KindText))
}

func TestTextNeverFallsBack(t *testing.T) {
	free := &fakeChannel{name: "free", ready: true, err: errors.New("socket closed")}
	paid := &fakeChannel{name: "paid", ready: true}
	g := NewGateway(free, paid)

	g.SendText(context.Background(), "919876543210", "hello")

	assert.Equal(t, 1, free.count(KindText))
	assert.Equal(t, 0, paid.count(KindText))
	assert.Equal(t, 0, paid.count(KindMedia))
}

func TestMediaFallsBackExactlyOnce(t *testing.T) {
	free := &fakeChannel{name: "free", ready: true, err: errors.New("upload failed")}
	paid := &fakeChannel{name: "paid", ready: true}
	g := NewGateway(free, paid)

	g.SendMedia(context.Background(), "919876543210", "assets/Rent.png", "bill")

	assert.Equal(t, 1, free.count(KindMedia))
	assert.Equal(t, 1, paid.count(KindMedia))
}

func TestMediaFallbackFailureIsSwallowed(t *testing.T) {
	free := &fakeChannel{name: "free", ready: true, err: errors.New("upload failed")}
	paid := &fakeChannel{name: "paid", ready: true, err: errors.New("401")}
	g := NewGateway(free, paid)

	assert.NotPanics(t, func() {
		g.SendMedia(context.Background(), "919876543210", "assets/Rent.png", "")
	})
	assert.Equal(t, 1, free.count(KindMedia))
	assert.Equal(t, 1, paid.count(KindMedia))
}

func TestMediaSkipsFreeWhenNotReady(t *testing.T) {
	free := &fakeChannel{name: "free", ready: false}
	paid := &fakeChannel{name: "paid", ready: true}
	g := NewGateway(free, paid)

	g.SendMedia(context.Background(), "919876543210", "assets/Rent.png", "")

	assert.Equal(t, 0, free.count(KindMedia))
	assert.Equal(t, 1, paid.count(KindMedia))
}

func TestButtonsAlwaysPaid(t *testing.T) {
	free := &fakeChannel{name: "free", ready: true}
	paid := &fakeChannel{name: "paid", ready: true}
	g := NewGateway(free, paid)

	g.SendButtons(context.Background(), "919876543210", "How can we help?", []string{"Food", "Payment"})

	assert.Equal(t, 0, free.count(KindButtons))
	assert.Equal(t, 1, paid.count(KindButtons))
}

func TestNilFreeChannel(t *testing.T) {
	paid := &fakeChannel{name: "paid", ready: true}
	g := NewGateway(nil, paid)

	g.SendText(context.Background(), "919876543210", "hi")
	g.SendMedia(context.Background(), "919876543210", "x.png", "")

	assert.False(t, g.FreeReady())
	assert.Equal(t, 1, paid.count(KindText))
	assert.Equal(t, 1, paid.count(KindMedia))
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", MimeType("bill.PDF"))
	assert.Equal(t, "image/png", MimeType("a.png"))
	assert.Equal(t, "image/jpeg", MimeType("qr scan.jpeg"))
	assert.True(t, IsDocument("invoice.pdf"))
	assert.False(t, IsDocument("invoice.png"))
}
