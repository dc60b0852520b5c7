// Package notify はメール送信と、レスポンス返却後に行うベストエフォートな通知配送を提供する。
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"
)

// senderName は送信元の表示名。
const senderName = "Burlington Deals"

// Message は送信する1通のメール。HTMLが空の場合はテキストのみ送る。
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig はSMTP接続設定。
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// dialSender はgomail.Dialerのうち送信に使う部分。
type dialSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer はgomailを使ったSMTP送信の実装。
type SMTPMailer struct {
	dialer dialSender
	from   string
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   cfg.From,
	}
}

// Send はメッセージを送信する。
// gomailはcontextを受け付けないため、キャンセル済みの場合のみ送信前に中断する。
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := m.dialer.DialAndSend(m.buildMessage(msg)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(msg Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, senderName)
	gm.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		gm.SetHeader("Reply-To", msg.ReplyTo)
	}
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}
	return gm
}

// LogMailer はSMTP未設定時に使うMailer。送信内容をログに出すだけで何も送らない。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send は宛先と件名をログに記録する。本文はシークレットを含むため記録しない。
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Warn("SMTPが未設定のためメールを送信しませんでした",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
