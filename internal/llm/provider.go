package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jwebster45206/lifequest/pkg/chat"
)

// Request is one structured-output call. Schema is optional; providers
// that support constrained decoding use it, the rest rely on the prompt.
type Request struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]interface{}

	// Image is attached for vision calls.
	Image     []byte
	ImageMIME string
}

// Messages renders the request as a system + user conversation.
func (r Request) Messages() []chat.ChatMessage {
	msgs := make([]chat.ChatMessage, 0, 2)
	if r.System != "" {
		msgs = append(msgs, chat.ChatMessage{Role: chat.ChatRoleSystem, Content: r.System})
	}
	msgs = append(msgs, chat.ChatMessage{Role: chat.ChatRoleUser, Content: r.User})
	return msgs
}

// DataURL encodes the image as a data: URL.
func (r Request) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", r.imageMIME(), base64.StdEncoding.EncodeToString(r.Image))
}

func (r Request) imageMIME() string {
	if r.ImageMIME != "" {
		return r.ImageMIME
	}
	return http.DetectContentType(r.Image)
}

// Provider is a model backend. Complete returns the raw text reply.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is returned by HTTP providers for non-200 replies.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsTransient reports whether retrying err might succeed: rate limits,
// server errors and network failures. Context expiry is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return !ne.Timeout()
	}
	// Unknown provider errors (SDK failures, EOF) are worth one more try.
	return true
}
