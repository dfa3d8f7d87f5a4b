package chat

import (
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"aurora/backend/internal/constants"
	apperrors "aurora/backend/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// InboundFrame is what a client sends: an opaque ciphertext for one identity
type InboundFrame struct {
	To         string `json:"to" validate:"required,max=50"`
	Ciphertext string `json:"ciphertext" validate:"required"`
}

// OutboundFrame is pushed to live connections. ID and To let a sender's other
// devices place their own echo.
type OutboundFrame struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func newOutbound(id, from, to, content string, at time.Time) OutboundFrame {
	return OutboundFrame{
		ID:        id,
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

var frameValidator = validator.New()

// DecodeInbound parses and validates one inbound frame. Any failure is a protocol error.
func DecodeInbound(data []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return InboundFrame{}, apperrors.NewValidation("frame", "malformed JSON")
	}
	if err := frameValidator.Struct(frame); err != nil {
		return InboundFrame{}, apperrors.NewValidation("frame", err.Error())
	}
	if len(frame.To) > constants.UsernameMaxLength {
		return InboundFrame{}, apperrors.NewValidation("to", "identity too long")
	}
	return frame, nil
}

// Encode serialises an outbound frame
func (f OutboundFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
