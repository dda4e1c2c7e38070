package parse

import (
	"sort"
	"strings"
)

// Non-HTTP schemes that are treated as trivially valid without a network probe
var specialProtocols = []string{
	"mailto", "tel", "sms", "whatsapp", "skype", "market", "intent", "spotify",
	"steam", "discord", "slack", "viber", "javascript", "file", "ftp", "sftp",
	"news", "nntp", "rtmp", "rtsp", "mms", "magnet", "webcal", "fb-messenger",
	"tg", "itms", "itms-apps", "maps", "geo", "matrix", "zoomus", "teams",
}

// Longest first so an overlapping registration wins over its shorter prefix
var specialPrefixes = func() []string {
	p := make([]string, len(specialProtocols))
	copy(p, specialProtocols)
	sort.SliceStable(p, func(i, j int) bool { return len(p[i]) > len(p[j]) })
	return p
}()

// SpecialProtocol returns the registered special scheme raw starts with
// (case-insensitive), or "" if none matches.
func SpecialProtocol(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range specialPrefixes {
		if strings.HasPrefix(s, p+":") {
			return p
		}
	}
	return ""
}

// SpecialProtocols returns the registered special schemes
func SpecialProtocols() []string {
	out := make([]string, len(specialProtocols))
	copy(out, specialProtocols)
	return out
}

// ProtocolMessage is the success message reported for a special-protocol target
func ProtocolMessage(protocol string) string {
	switch protocol {
	case "javascript":
		return "JavaScript link (not checked)"
	case "mailto":
		return "Email link (not checked)"
	case "tel", "sms":
		return "Phone link (not checked)"
	}
	return "Special protocol " + protocol + ": link (not checked)"
}
