package oracle

import (
	"encoding/json"
	"strings"
)

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop a language tag such as "json".
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Decode unmarshals a fenced or bare JSON document into v. When strict
// decoding fails it retries on the outermost object or array found in the
// text, which tolerates prose around the payload.
func Decode(raw string, v any) error {
	body := StripFences(raw)
	err := json.Unmarshal([]byte(body), v)
	if err == nil {
		return nil
	}
	if inner, ok := outermost(body); ok {
		if json.Unmarshal([]byte(inner), v) == nil {
			return nil
		}
	}
	return err
}

func outermost(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// Flex is a JSON scalar the model may emit as either a string or a number.
type Flex string

func (f *Flex) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = Flex(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Flex(n.String())
	return nil
}

func (f Flex) String() string {
	return strings.TrimSpace(string(f))
}
