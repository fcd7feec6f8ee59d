package savefile

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/idle-bit/idlebit/internal/domain"
)

// ─── Save Strings ───────────────────────────────────────────────────────────
// A save string is base64(encodeURIComponent(json)), the form the browser
// game produced with btoa(encodeURIComponent(...)).

// uriUnescaped are the characters encodeURIComponent leaves alone that
// url.QueryEscape escapes.
var uriUnescaped = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Export encodes a snapshot as a save string.
func Export(data domain.SaveData) (string, error) {
	b, err := Marshal(data)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	escaped := uriUnescaped.Replace(url.QueryEscape(string(b)))
	return base64.StdEncoding.EncodeToString([]byte(escaped)), nil
}

// Import decodes a save string. It also accepts base64 of raw JSON.
func Import(s string) (domain.SaveData, error) {
	s = strings.TrimSpace(s)
	raw, err := decodeBase64(s)
	if err != nil {
		return domain.SaveData{}, fmt.Errorf("import: %w: %v", domain.ErrSaveCorrupted, err)
	}

	text := string(raw)
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		unescaped, err := url.PathUnescape(text)
		if err != nil {
			return domain.SaveData{}, fmt.Errorf("import: %w: %v", domain.ErrSaveCorrupted, err)
		}
		text = unescaped
	}

	data, err := Unmarshal([]byte(text))
	if err != nil {
		return domain.SaveData{}, fmt.Errorf("import: %w", err)
	}
	return data, nil
}

// decodeBase64 tolerates missing padding and the URL alphabet.
func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("not base64")
}
