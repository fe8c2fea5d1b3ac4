package stack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// redacted は描画時に秘密値を置き換える文字列。
const redacted = "********"

// Format は描画形式。
type Format string

const (
	// FormatYAML はYAML形式。
	FormatYAML Format = "yaml"
	// FormatJSON はJSON形式。
	FormatJSON Format = "json"
)

// Redacted はゲートのパスワードとオリジンの共有シークレットを伏せたコピーを返す。
func (s *Stack) Redacted() *Stack {
	out := *s
	if s.EdgeFunction != nil {
		ef := *s.EdgeFunction
		ef.Gate.Passwords = make([]string, len(s.EdgeFunction.Gate.Passwords))
		for i := range ef.Gate.Passwords {
			ef.Gate.Passwords[i] = redacted
		}
		out.EdgeFunction = &ef
	}

	out.Distribution.Origins = slices.Clone(s.Distribution.Origins)
	for i, o := range out.Distribution.Origins {
		if len(o.CustomHeaders) == 0 {
			continue
		}
		headers := maps.Clone(o.CustomHeaders)
		for k := range headers {
			headers[k] = redacted
		}
		out.Distribution.Origins[i].CustomHeaders = headers
	}
	return &out
}

// Render はスタックを秘密値を伏せたうえで指定形式に描画する。
func (s *Stack) Render(format Format) ([]byte, error) {
	r := s.Redacted()
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("YAMLへの変換に失敗: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("YAMLへの変換に失敗: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("JSONへの変換に失敗: %w", err)
		}
		return append(b, '\n'), nil
	default:
		return nil, fmt.Errorf("未対応の出力形式です: %q", format)
	}
}
