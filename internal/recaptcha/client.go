// Package recaptcha はGoogle reCAPTCHAのトークン検証クライアントを提供する。
package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint はreCAPTCHAの検証APIのエンドポイント。
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// maxResponseSize はレスポンスボディの読み取り上限。
const maxResponseSize = 64 * 1024

// ErrTransport は検証APIに到達できなかった、または応答を解釈できなかったことを表す。
// 呼び出し側はこのエラーを検証失敗とは区別して扱う。
var ErrTransport = errors.New("recaptcha verifier unavailable")

// Verifier はreCAPTCHAトークンを検証する。
type Verifier interface {
	// Verify はトークンが人間による操作と判定された場合にtrueを返す。
	// 検証APIとの通信に失敗した場合はErrTransportをラップしたエラーを返す。
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Client は検証APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	secret     string
	endpoint   string
}

// NewClient はClientを生成する。endpointが空の場合はDefaultEndpointを使う。
func NewClient(httpClient *http.Client, secret, endpoint string, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		secret:     secret,
		endpoint:   endpoint,
	}
}

// Verify はVerifierを実装する。
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("%w: failed to build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("recaptcha verify request failed", slog.String("error", err.Error()))
		return false, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("recaptcha verifier returned error status", slog.Int("http_status", resp.StatusCode))
		return false, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	var result siteVerifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Warn("recaptcha response could not be parsed", slog.String("error", err.Error()))
		return false, fmt.Errorf("%w: failed to parse response: %v", ErrTransport, err)
	}

	if !result.Success {
		c.logger.Info("recaptcha verification rejected", slog.Any("error_codes", result.ErrorCodes))
	}
	return result.Success, nil
}
