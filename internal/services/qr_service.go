package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"

	"github.com/skip2/go-qrcode"
)

const inviteQRSize = 256

// QRService renders referral invite links and their QR codes.
type QRService struct {
	botUsername string
}

func NewQRService(botUsername string) *QRService {
	return &QRService{botUsername: botUsername}
}

// InviteLink is the deep link that opens the bot with /start <code>.
func (s *QRService) InviteLink(code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, url.QueryEscape(code))
}

// InviteQRCode returns a PNG of the invite link.
func (s *QRService) InviteQRCode(code string) ([]byte, error) {
	qr, err := qrcode.New(s.InviteLink(code), qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(inviteQRSize)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// InviteQRBase64 is InviteQRCode encoded for JSON responses.
func (s *QRService) InviteQRBase64(code string) (string, error) {
	img, err := s.InviteQRCode(code)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(img), nil
}
