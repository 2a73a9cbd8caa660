package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
)

var (
	ErrNoRecipient = errors.New("lark: recipient open_id is empty")
	ErrNoContent   = errors.New("lark: message text is empty")
)

// APIError is a non-zero code in an otherwise successful HTTP exchange
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lark api error code=%d msg=%s", e.Code, e.Msg)
}

type createMessageFunc func(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)

// Messenger delivers plain text notifications as IM messages addressed by open_id
type Messenger struct {
	create createMessageFunc
	logger *zap.Logger
}

var _ port.MessageSender = (*Messenger)(nil)

func NewMessenger(client *lark.Client, logger *zap.Logger) *Messenger {
	return &Messenger{create: client.Im.Message.Create, logger: logger}
}

type textContent struct {
	Text string `json:"text"`
}

// textMessageBody addresses a text message to openID
func textMessageBody(openID, content string) (*larkim.CreateMessageReqBody, error) {
	payload, err := json.Marshal(textContent{Text: content})
	if err != nil {
		return nil, err
	}
	return larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(openID).
		MsgType("text").
		Content(string(payload)).
		Build(), nil
}

func (m *Messenger) SendText(ctx context.Context, openID string, content string) error {
	switch {
	case openID == "":
		return ErrNoRecipient
	case content == "":
		return ErrNoContent
	}

	body, err := textMessageBody(openID, content)
	if err != nil {
		return err
	}
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(body).
		Build()

	resp, err := m.create(ctx, req)
	if err != nil {
		return fmt.Errorf("lark send to %s: %w", openID, err)
	}
	if !resp.Success() {
		return &APIError{Code: resp.Code, Msg: resp.Msg}
	}

	if resp.Data != nil && resp.Data.MessageId != nil {
		m.logger.Debug("Lark message delivered", zap.String("open_id", openID), zap.String("message_id", *resp.Data.MessageId))
	}
	return nil
}
