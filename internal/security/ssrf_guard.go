package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrInvalidWebsite はウェブサイトURLとして受け付けられない値を表す。
var ErrInvalidWebsite = errors.New("invalid website url")

// blockedNetworks はウェブサイトURLとして登録を拒否するアドレス範囲。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %s: %v", cidr, err))
		}
		out = append(out, network)
	}
	return out
}

// NewOutboundClient は外部APIの呼び出しに使うHTTPクライアントを生成する。
// safeurlにより、名前解決後のアドレスがプライベート・ループバック・リンクローカルの場合は接続しない。
func NewOutboundClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()
	return safeurl.Client(config).Client
}

// NormalizeWebsite は店舗のウェブサイトURLを検証して正規化する。
// スキームが省略されている場合はhttpsを補う。http/https以外のスキーム、
// 空のホスト、localhostやプライベートアドレスはErrInvalidWebsiteとする。
func NormalizeWebsite(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidWebsite
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWebsite, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidWebsite, u.Scheme)
	}
	host := u.Hostname()
	if host == "" || strings.EqualFold(host, "localhost") {
		return "", fmt.Errorf("%w: host %q", ErrInvalidWebsite, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return "", fmt.Errorf("%w: address %s", ErrInvalidWebsite, ip)
			}
		}
	}
	u.Scheme = scheme
	return u.String(), nil
}
