// Package qr implements the payment-request codec and the scanning
// state machine. A payment request is a JSON object with exactly two
// required fields, identifier and amount, rendered as a two-tone QR
// image; extra fields are ignored on decode.
package qr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"

	"luka-points/internal/core/domain"
	"luka-points/pkg/apperror"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

// imageSize matches the displayed size in the mobile client.
const imageSize = 300

// ErrNoCode reports that a frame contains no readable QR code at all.
// During scanning this is expected noise, not a failure.
var ErrNoCode = errors.New("qr: no code found in frame")

// EncodePaymentRequest serializes the payload and renders it as a PNG QR
// image. The rendering is black-on-white with the standard quiet-zone
// border. The payload carries no signature and no expiry.
func EncodePaymentRequest(p domain.PaymentRequest) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal payment request: %w", err))
	}

	// Medium recovery keeps the code scannable at the fixed display size.
	png, err := qrcode.Encode(string(payload), qrcode.Medium, imageSize)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("render qr code: %w", err))
	}
	return png, nil
}

// DecodePaymentRequest extracts and parses a payment request from an
// encoded image. It returns ErrNoCode when no QR code is present, and
// QR_001 when a code is found but its payload fails the schema.
func DecodePaymentRequest(data []byte) (*domain.PaymentRequest, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNoCode
	}
	return DecodeFrame(img)
}

// DecodeFrame decodes a single video frame. See DecodePaymentRequest for
// the error contract.
func DecodeFrame(img image.Image) (*domain.PaymentRequest, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, ErrNoCode
	}

	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return nil, ErrNoCode
	}

	return ParsePayload([]byte(result.GetText()))
}

// ParsePayload parses the UTF-8 text payload of a scanned code. The
// identifier may be a string or a number; the amount must be a positive
// integer. Unknown fields are ignored; missing or invalid fields fail
// with QR_001.
func ParsePayload(data []byte) (*domain.PaymentRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, apperror.ErrMalformedPayload("not a JSON object")
	}

	var identifier string
	switch v := raw["identifier"].(type) {
	case string:
		identifier = v
	case json.Number:
		identifier = v.String()
	case nil:
		return nil, apperror.ErrMalformedPayload("missing identifier")
	default:
		return nil, apperror.ErrMalformedPayload("identifier must be a string or number")
	}

	num, ok := raw["amount"].(json.Number)
	if !ok {
		return nil, apperror.ErrMalformedPayload("missing or non-numeric amount")
	}
	amount, err := num.Int64()
	if err != nil {
		return nil, apperror.ErrMalformedPayload("amount must be an integer")
	}

	p := domain.PaymentRequest{Identifier: identifier, Amount: amount}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
