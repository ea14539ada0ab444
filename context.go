package authcore

import (
	"context"
	"strings"

	"github.com/mssola/useragent"

	"github.com/civicpulse/authcore/internal/otp"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's address to ctx. The Engine uses it for
// the per-address issuance throttle, audit events and code metadata.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the raw User-Agent header to ctx. Only a coarse
// "Browser on OS" descriptor is ever stored.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// ClientIPFromContext returns the address set by WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// UserAgentFromContext returns the raw User-Agent set by WithUserAgent.
func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func requestMetadata(ctx context.Context) otp.Metadata {
	return otp.Metadata{
		OriginAddress:    ClientIPFromContext(ctx),
		ClientDescriptor: describeClient(UserAgentFromContext(ctx)),
	}
}

const maxDescriptorLen = 96

// describeClient reduces a User-Agent to "Browser on OS".
func describeClient(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	os := ua.OS()
	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	out := strings.TrimSpace(browser + " on " + os)
	if len(out) > maxDescriptorLen {
		out = out[:maxDescriptorLen]
	}
	return out
}
