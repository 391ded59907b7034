// Package errmsg turns failures of any shape into the single message shown to
// the user.
package errmsg

import (
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// fallbackKey is the catalog key of the message used when nothing better is found.
const fallbackKey = "operation failed"

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	_ = b.SetString(language.English, fallbackKey, "operation failed")
	_ = b.SetString(language.Japanese, fallbackKey, "操作に失敗しました")
	return b
}

// UserMessager is implemented by errors that may carry a message meant for
// the user, such as the message field of a server error body. An empty
// UserMessage means the error has nothing to show and the fallback is used.
type UserMessager interface {
	UserMessage() string
}

// Normalizer converts failures into user-facing messages.
type Normalizer struct {
	fallback string
}

// New returns a Normalizer whose fallback message is localized for tag.
func New(tag language.Tag) *Normalizer {
	p := message.NewPrinter(tag, message.Catalog(messages))
	return &Normalizer{fallback: p.Sprintf(fallbackKey)}
}

var defaultNormalizer = New(language.English)

// Default returns the Normalizer with the English fallback.
func Default() *Normalizer {
	return defaultNormalizer
}

// Normalize converts failure using the English fallback.
func Normalize(failure any) string {
	return defaultNormalizer.Normalize(failure)
}

// Fallback returns the localized message used when failure carries none.
func (n *Normalizer) Fallback() string {
	return n.fallback
}

// Normalize returns a non-empty message for failure. An error wrapping a
// UserMessager yields only its UserMessage; other errors yield their own
// text. Other values are inspected as generic payloads, in order: a nested
// error.message, a response.data.message, then a top-level message.
// It never panics.
func (n *Normalizer) Normalize(failure any) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = n.fallback
		}
	}()

	msg = strings.TrimSpace(extract(failure))
	if msg == "" {
		return n.fallback
	}
	return msg
}

func extract(failure any) string {
	switch f := failure.(type) {
	case nil:
		return ""
	case error:
		var um UserMessager
		if errors.As(f, &um) {
			return um.UserMessage()
		}
		return f.Error()
	case map[string]any:
		return fromPayload(f)
	case json.RawMessage:
		return fromJSON(f)
	case []byte:
		return fromJSON(f)
	case string, bool, int, int64, float64:
		return ""
	}

	// Structs and other maps are inspected through their JSON form.
	data, err := json.Marshal(failure)
	if err != nil {
		return ""
	}
	return fromJSON(data)
}

func fromJSON(data []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return fromPayload(payload)
}

func fromPayload(payload map[string]any) string {
	if msg := str(dig(payload, "error", "message")); msg != "" {
		return msg
	}
	if msg := str(dig(payload, "response", "data", "message")); msg != "" {
		return msg
	}
	return str(payload["message"])
}

// dig walks nested objects and returns nil as soon as a level is missing or
// is not an object.
func dig(payload map[string]any, path ...string) any {
	var cur any = payload
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
