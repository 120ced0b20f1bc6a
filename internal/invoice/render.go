// Package invoice renders monthly bills as PNG images for WhatsApp delivery.
package invoice

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
)

const (
	width  = 400
	height = 300
	scale  = 2
)

// Bill is the data printed on an invoice
type Bill struct {
	BusinessName string
	TenantName   string
	Phone        string
	Room         string
	Location     string
	Period       string // e.g. "March 2025"
	Rent         float64
	EB           float64
	Total        float64
	DueDate      string
	UPIID        string
	Status       string
	IssuedAt     time.Time
}

// Renderer writes invoice images into a directory
type Renderer struct {
	dir string
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Render draws the bill and returns the written file path
func (r *Renderer) Render(b Bill) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("invoice: create dir: %w", err)
	}
	if b.IssuedAt.IsZero() {
		b.IssuedAt = time.Now()
	}

	dc := gg.NewContext(width*scale, height*scale)
	dc.Scale(scale, scale)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Header band
	dc.SetRGB(0.13, 0.35, 0.62)
	dc.DrawRectangle(0, 0, width, 48)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(b.BusinessName, width/2, 18, 0.5, 0.5)
	dc.DrawStringAnchored("Rent Invoice - "+b.Period, width/2, 34, 0.5, 0.5)

	dc.SetRGB(0.1, 0.1, 0.1)
	y := 72.0
	line := func(label, value string) {
		dc.DrawString(label, 24, y)
		dc.DrawStringAnchored(value, width-24, y, 1, 0)
		y += 20
	}

	line("Tenant", b.TenantName)
	line("Room", b.Room)
	if b.Location != "" {
		line("Location", b.Location)
	}
	line("Issued", b.IssuedAt.Format("02 Jan 2006"))

	y += 4
	dc.SetLineWidth(1)
	dc.DrawLine(24, y-12, width-24, y-12)
	dc.Stroke()

	line("Rent", money(b.Rent))
	line("Electricity (EB)", money(b.EB))

	dc.DrawLine(24, y-12, width-24, y-12)
	dc.Stroke()
	line("Total Due", money(b.Total))

	if b.DueDate != "" {
		line("Due Date", b.DueDate)
	}
	if b.UPIID != "" {
		line("UPI", b.UPIID)
	}
	if b.Status != "" {
		line("Status", b.Status)
	}

	name := fmt.Sprintf("bill_%s_%s.png", unsafeName.ReplaceAllString(b.Room, ""), uuid.NewString()[:8])
	path := filepath.Join(r.dir, name)
	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("invoice: save: %w", err)
	}
	return path, nil
}

func money(v float64) string {
	return fmt.Sprintf("Rs. %.0f", v)
}
