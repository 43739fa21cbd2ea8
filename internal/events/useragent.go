package events

import (
	"strconv"

	"github.com/mssola/useragent"
)

// SignupAttributes describes the client a registration came from.
func SignupAttributes(rawUserAgent, clientIP string) map[string]string {
	attrs := map[string]string{}
	if clientIP != "" {
		attrs["client_ip"] = clientIP
	}
	if rawUserAgent == "" {
		return attrs
	}
	ua := useragent.New(rawUserAgent)
	browser, version := ua.Browser()
	if browser != "" {
		attrs["browser"] = browser
		attrs["browser_version"] = version
	}
	if os := ua.OS(); os != "" {
		attrs["os"] = os
	}
	attrs["mobile"] = strconv.FormatBool(ua.Mobile())
	attrs["bot"] = strconv.FormatBool(ua.Bot())
	return attrs
}
