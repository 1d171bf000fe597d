// Package qrpayload encodes tracking records into QR images and decodes
// scanned QR text back into a tracking id.
//
// Encoded form: the JSON document of Payload rendered as a PNG data URL.
// Decoded form: either that JSON document or a bare tracking id, so codes
// typed in by hand still resolve.
package qrpayload

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// MaxPayloadLen bounds scanned input; anything longer cannot come from our codes.
const MaxPayloadLen = 4096

// PlaceholderTrackingID stands in for the id in images rendered before the
// record is stored.
const PlaceholderTrackingID = "temp"

// ErrMalformedPayload is returned when no tracking id can be extracted.
var ErrMalformedPayload = errors.New("malformed QR payload")

// Payload is the document embedded in a tracking QR code.
type Payload struct {
	TrackingID string `json:"trackingId"`
	EventID    string `json:"eventId"`
	TeamID     string `json:"teamId"`
	MemberID   string `json:"memberId,omitempty"`
	Type       string `json:"type"`
	Label      string `json:"label"`
}

// Renderer turns text into a displayable image reference.
type Renderer interface {
	Render(content string) (string, error)
}

// PNGRenderer renders square PNG QR codes as base64 data URLs.
type PNGRenderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewPNGRenderer returns a renderer with high error correction.
// size is the image edge in pixels.
func NewPNGRenderer(size int) *PNGRenderer {
	return &PNGRenderer{size: size, level: qrcode.High}
}

// Render encodes content as a data:image/png;base64 URL.
func (r *PNGRenderer) Render(content string) (string, error) {
	png, err := qrcode.Encode(content, r.level, r.size)
	if err != nil {
		return "", fmt.Errorf("render QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Codec pairs the payload format with a renderer.
type Codec struct {
	renderer Renderer
}

// NewCodec creates a codec drawing images with r.
func NewCodec(r Renderer) *Codec {
	return &Codec{renderer: r}
}

// Encode renders p. The tracking id must already be known.
func (c *Codec) Encode(p Payload) (string, error) {
	if p.TrackingID == "" {
		return "", errors.New("encode QR payload: tracking id is empty")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal QR payload: %w", err)
	}
	return c.renderer.Render(string(data))
}

// Decode extracts the tracking id from scanned text.
//
// A JSON object is authoritative: its trackingId field is used, and an
// object without one is malformed. Any other input is taken as a bare id
// after trimming whitespace.
func Decode(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > MaxPayloadLen {
		return "", ErrMalformedPayload
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			id, _ := obj["trackingId"].(string)
			id = strings.TrimSpace(id)
			if id == "" {
				return "", ErrMalformedPayload
			}
			return id, nil
		}
	}

	return trimmed, nil
}
