// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns failed calls to the query tool server into
// user-facing troubleshooting output.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	"pgquery/cli/internal/backend"
)

// Class is a coarse category of network failure.
type Class int

const (
	Generic Class = iota
	Timeout
	DNS
	Refused
	TLS
	Server
)

func (c Class) String() string {
	switch c {
	case Timeout:
		return "timeout"
	case DNS:
		return "dns"
	case Refused:
		return "refused"
	case TLS:
		return "tls"
	case Server:
		return "server"
	}
	return "generic"
}

// Classify categorizes err. HTTP responses with a 5xx status are Server errors.
func Classify(err error) Class {
	if err == nil {
		return Generic
	}
	if he, ok := backend.AsHTTPError(err); ok && he.ReadyState == backend.ReadyStateDone {
		if he.Status >= 500 {
			return Server
		}
		return Generic
	}
	switch {
	case isTimeoutError(err):
		return Timeout
	case isDNSError(err):
		return DNS
	case isConnectionRefusedError(err):
		return Refused
	case isSSLError(err):
		return TLS
	case isServerError(err.Error()):
		return Server
	}
	return Generic
}

// FormatNetworkError prints troubleshooting help for err and returns it wrapped.
// context describes what the CLI was doing ("starting the query"), server is the base URL.
func FormatNetworkError(err error, context, server string) error {
	if err == nil {
		return nil
	}
	pterm.Println(Describe(err, context, server))
	return fmt.Errorf("network error: %w", err)
}

// Describe renders the message FormatNetworkError prints.
func Describe(err error, context, server string) string {
	host := ExtractHostFromURL(server)
	var b strings.Builder

	switch Classify(err) {
	case Timeout:
		fmt.Fprintf(&b, "Connection timeout while %s\n\n", context)
		b.WriteString("The server took too long to respond. This could mean:\n")
		b.WriteString("  • The server is under heavy load\n")
		b.WriteString("  • A long-running request is blocking the session\n")
		b.WriteString("  • A firewall is dropping the connection\n\n")
		b.WriteString("Raise --timeout or try again in a few moments.\n")
	case DNS:
		fmt.Fprintf(&b, "Cannot resolve server address while %s\n\n", context)
		fmt.Fprintf(&b, "Unable to look up %s. Please check:\n", host)
		b.WriteString("  • The server setting (pgquery config set server <url>)\n")
		b.WriteString("  • Your DNS settings\n")
	case Refused:
		fmt.Fprintf(&b, "Connection refused while %s\n\n", context)
		fmt.Fprintf(&b, "Nothing is accepting connections on %s. This could mean:\n", host)
		b.WriteString("  • The server is not running\n")
		b.WriteString("  • Wrong server address or port\n")
		b.WriteString("  • A firewall is blocking the connection\n")
	case TLS:
		fmt.Fprintf(&b, "Secure connection failed while %s\n\n", context)
		b.WriteString("Cannot establish an HTTPS connection. This could mean:\n")
		b.WriteString("  • The server certificate is invalid or self-signed\n")
		b.WriteString("  • A proxy is intercepting HTTPS\n")
		b.WriteString("  • The system clock is wrong\n")
	case Server:
		fmt.Fprintf(&b, "Server error while %s\n\n", context)
		fmt.Fprintf(&b, "%s answered with an internal error.\n", host)
		if he, ok := backend.AsHTTPError(err); ok && he.Message() != "" {
			fmt.Fprintf(&b, "  %s\n", abbreviate(he.Message()))
		}
		b.WriteString("Check the server log, then try again.\n")
	default:
		fmt.Fprintf(&b, "Cannot reach %s while %s\n\n", host, context)
		b.WriteString("Please check:\n")
		b.WriteString("  • Your network connection\n")
		b.WriteString("  • Whether the server is reachable from this machine\n")
		if d := abbreviate(err.Error()); d != "" {
			fmt.Fprintf(&b, "\nTechnical details: %s\n", d)
		}
	}
	return b.String()
}

func abbreviate(s string) string {
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}

func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, s := range []string{"internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// ExtractHostFromURL extracts the host of urlStr, "server" when it has none.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
