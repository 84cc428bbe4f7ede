// Package notify 推送交易通知。
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var notifyLog = logrus.WithField("component", "notify")

const telegramAPI = "https://api.telegram.org"

// Notifier 与 trader.Notifier 相同的签名
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop 未配置通知渠道时使用
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// Telegram 通过 Bot API sendMessage 推送
type Telegram struct {
	http   *resty.Client
	token  string
	chatID string
}

// New token 或 chatID 为空时返回 Nop
func New(token, chatID string) Notifier {
	if token == "" || chatID == "" {
		notifyLog.Info("未配置 Telegram，通知已关闭")
		return Nop{}
	}
	return NewTelegram(telegramAPI, token, chatID)
}

func NewTelegram(baseURL, token, chatID string) *Telegram {
	return &Telegram{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second),
		token:  token,
		chatID: chatID,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	var out telegramResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"chat_id": t.chatID, "text": text}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return errors.Wrap(err, "telegram sendMessage")
	}
	if resp.IsError() || !out.OK {
		return errors.Errorf("telegram sendMessage: status=%d %s", resp.StatusCode(), out.Description)
	}
	notifyLog.Debugf("已发送: %s", text)
	return nil
}
