// Package m3u parses the line-oriented playlist format panels expose via
// get.php: an #EXTINF metadata line with inline key="value" attributes
// followed by a URL line. It is the fallback when player_api is down.
package m3u

import (
	"bufio"
	"io"
	"strings"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// Entry is one playlist item: the display title after the EXTINF comma, the
// URL from the following line, and any inline attributes.
type Entry struct {
	Title string
	URL   string
	Attrs map[string]string // tvg-id, tvg-logo, group-title, ...
}

// Group returns the group-title attribute, trimmed.
func (e Entry) Group() string {
	return strings.TrimSpace(e.Attrs["group-title"])
}

// Logo returns the tvg-logo attribute, trimmed.
func (e Entry) Logo() string {
	return strings.TrimSpace(e.Attrs["tvg-logo"])
}

// Parse reads a playlist in a streaming fashion. A metadata line with no
// following URL line is dropped; anything before the first EXTINF is
// ignored.
func Parse(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var entries []Entry
	var extinf string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			extinf = line
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if extinf != "" && (strings.HasPrefix(line, "http") || strings.HasPrefix(line, "/")) {
			entries = append(entries, Entry{
				Title: titleFromEXTINF(extinf),
				URL:   line,
				Attrs: attrsFromEXTINF(extinf),
			})
		}
		extinf = ""
	}
	return entries, sc.Err()
}

// titleFromEXTINF returns the text after the last attribute comma.
func titleFromEXTINF(extinf string) string {
	// Attribute values may themselves contain commas, so scan outside
	// quotes for the separating comma.
	inQuote := false
	for i := 0; i < len(extinf); i++ {
		switch extinf[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				return strings.TrimSpace(extinf[i+1:])
			}
		}
	}
	return strings.TrimSpace(extinf)
}

// attrsFromEXTINF extracts the inline key="value" attributes.
func attrsFromEXTINF(extinf string) map[string]string {
	attrs := make(map[string]string)
	rest := extinf
	for {
		eq := strings.Index(rest, `="`)
		if eq < 0 {
			break
		}
		keyStart := eq
		for keyStart > 0 && isAttrKeyByte(rest[keyStart-1]) {
			keyStart--
		}
		key := rest[keyStart:eq]
		valStart := eq + 2
		valEnd := strings.IndexByte(rest[valStart:], '"')
		if valEnd < 0 {
			break
		}
		if key != "" {
			attrs[strings.ToLower(key)] = rest[valStart : valStart+valEnd]
		}
		rest = rest[valStart+valEnd+1:]
	}
	return attrs
}

func isAttrKeyByte(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
