package qrpayload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/png"
	"strings"
	"testing"
)

// recordingRenderer keeps the last rendered content instead of drawing it.
type recordingRenderer struct {
	last string
}

func (r *recordingRenderer) Render(content string) (string, error) {
	r.last = content
	return "img:" + content, nil
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rr := &recordingRenderer{}
	codec := NewCodec(rr)

	p := Payload{
		TrackingID: "0d9f6a6e-8a53-4c1c-9f3e-0c5a5b1e2d11",
		EventID:    "e-1",
		TeamID:     "t-1",
		MemberID:   "m-1",
		Type:       "food_coupon",
		Label:      "Lunch Coupon - Ada",
	}
	if _, err := codec.Encode(p); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	id, err := Decode(rr.last)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if id != p.TrackingID {
		t.Errorf("Decode() = %q, want %q", id, p.TrackingID)
	}

	var got Payload
	if err := json.Unmarshal([]byte(rr.last), &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got != p {
		t.Errorf("payload = %+v, want %+v", got, p)
	}
}

func TestEncode_TeamScopedOmitsMember(t *testing.T) {
	rr := &recordingRenderer{}
	if _, err := NewCodec(rr).Encode(Payload{TrackingID: "x", Type: "attendance", Label: "Event Attendance"}); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if strings.Contains(rr.last, "memberId") {
		t.Errorf("team-scoped payload contains memberId: %s", rr.last)
	}
}

func TestEncode_EmptyTrackingID(t *testing.T) {
	if _, err := NewCodec(&recordingRenderer{}).Encode(Payload{Label: "x"}); err == nil {
		t.Fatal("Encode() expected an error for an empty tracking id")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"json object", `{"trackingId":"abc","eventId":"e"}`, "abc", false},
		{"json object with padding", "  {\"trackingId\":\" abc \"}\n", "abc", false},
		{"bare id", "abc-123", "abc-123", false},
		{"bare id with whitespace", "\t abc-123 \n", "abc-123", false},
		{"broken json is a bare id", `{trackingId:abc`, `{trackingId:abc`, false},
		{"json number is a bare id", `12345`, `12345`, false},
		{"empty", "", "", true},
		{"whitespace only", "   \n\t", "", true},
		{"object without trackingId", `{"eventId":"e"}`, "", true},
		{"object with empty trackingId", `{"trackingId":"  "}`, "", true},
		{"object with numeric trackingId", `{"trackingId":42}`, "", true},
		{"too long", strings.Repeat("a", MaxPayloadLen+1), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("Decode() error = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPNGRenderer(t *testing.T) {
	const size = 300
	url, err := NewPNGRenderer(size).Render(`{"trackingId":"0d9f6a6e-8a53-4c1c-9f3e-0c5a5b1e2d11"}`)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("Render() = %.40q..., want %s prefix", url, prefix)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != size || b.Dy() != size {
		t.Errorf("image is %dx%d, want %dx%d", b.Dx(), b.Dy(), size, size)
	}
}
