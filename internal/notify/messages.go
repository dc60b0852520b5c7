package notify

import (
	"fmt"
	"html"
	"time"
)

const siteURL = "https://burlingtondeals.ca"

// htmlLayout は全メール共通のHTML枠。引数は見出しと本文。
const htmlLayout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="padding: 20px; background-color: #6B46C1; text-align: center;">
    <h1 style="color: white; margin: 0;">Burlington Deals</h1>
  </div>
  <div style="padding: 30px; border: 1px solid #e0e0e0; border-top: none; background-color: #ffffff;">
    <h2 style="color: #333333; margin-top: 0;">%s</h2>
    %s
    <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 30px 0;">
    <p style="font-size: 14px; color: #888888; text-align: center;">Burlington Deals | <a href="` + siteURL + `" style="color: #6B46C1; text-decoration: none;">burlingtondeals.ca</a></p>
    <p style="font-size: 12px; color: #888888; text-align: center;">This is an automated message. Please do not reply directly to this email.</p>
  </div>
</div>`

// actionBlock はボタンとコピー用リンクのHTML。
const actionBlock = `<div style="text-align: center; margin: 30px 0;">
      <a href="%[1]s" style="background-color: #6B46C1; color: white; padding: 12px 30px; text-decoration: none; border-radius: 4px; font-weight: bold; display: inline-block;">%[2]s</a>
    </div>
    <p style="color: #555555; line-height: 1.5;">Or copy and paste this link in your browser:</p>
    <div style="background-color: #f5f5f5; padding: 12px; border-radius: 4px;">
      <a href="%[1]s" style="color: #6B46C1; word-break: break-all; font-size: 14px; text-decoration: none;">%[1]s</a>
    </div>`

func paragraph(text string) string {
	return `<p style="color: #555555; line-height: 1.5;">` + html.EscapeString(text) + `</p>`
}

// VerificationEmail はアカウント認証メールを組み立てる。
func VerificationEmail(to, displayName, link string) Message {
	text := fmt.Sprintf(`Hello %s,

Thank you for creating an account with Burlington Deals! To complete your registration, please verify your email address by clicking this link:

%s

If you did not create an account with us, you can safely ignore this email.

Best regards,
The Burlington Deals Team
%s`, displayName, link, siteURL)

	body := paragraph("Hello "+displayName+",") +
		paragraph("Thank you for creating an account with us. To complete your registration and start discovering great local deals, please verify your email address:") +
		fmt.Sprintf(actionBlock, html.EscapeString(link), "Verify My Email") +
		paragraph("If you did not create this account, you can safely ignore this email.")

	return Message{
		To:      to,
		Subject: "Verify Your Burlington Deals Account",
		Text:    text,
		HTML:    fmt.Sprintf(htmlLayout, "Welcome to Burlington Deals!", body),
	}
}

// PasswordResetEmail はパスワードリセットメールを組み立てる。
func PasswordResetEmail(to, link string, ttl time.Duration) Message {
	expiry := fmt.Sprintf("This password reset link will expire in %s.", humanDuration(ttl))
	text := fmt.Sprintf(`Hello,

You recently requested to reset your password for your Burlington Deals account. Click the link below to reset your password:

%s

%s

If you did not request a password reset, please ignore this email and your password will remain unchanged.

Best regards,
The Burlington Deals Team
%s`, link, expiry, siteURL)

	body := paragraph("Hello,") +
		paragraph("You recently requested to reset your password for your Burlington Deals account. Please click the button below to reset your password:") +
		fmt.Sprintf(actionBlock, html.EscapeString(link), "Reset My Password") +
		paragraph(expiry) +
		paragraph("If you did not request a password reset, please ignore this email and your password will remain unchanged.")

	return Message{
		To:      to,
		Subject: "Reset Your Burlington Deals Password",
		Text:    text,
		HTML:    fmt.Sprintf(htmlLayout, "Password Reset Request", body),
	}
}

// ContactDetails は運営者宛て通知に載せる問い合わせ内容。
type ContactDetails struct {
	Name         string
	Email        string
	Reason       string
	BusinessName string
	Phone        string
	Message      string
	SubmittedAt  time.Time
}

// ContactEmail は問い合わせ受信を運営者に知らせるテキストメールを組み立てる。
// Reply-Toに送信者を設定し、そのまま返信できるようにする。
func ContactEmail(to string, c ContactDetails) Message {
	text := fmt.Sprintf(`You have a new inquiry from your contact form:

Name: %s
Email: %s
Reason: %s
Business Name: %s
Phone: %s

Message:
%s

Submitted At: %s
`, c.Name, c.Email, orNA(c.Reason), orNA(c.BusinessName), orNA(c.Phone), c.Message,
		c.SubmittedAt.Format(time.RFC1123))

	return Message{
		To:      to,
		ReplyTo: c.Email,
		Subject: "New Contact / Inquiry",
		Text:    text,
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// humanDuration は "1 hour" や "30 minutes" の形式に変換する。
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
