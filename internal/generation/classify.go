package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User-facing item error messages.
const (
	DefaultFailureMessage = "Generation failed"
	InterruptedMessage    = "Generation interrupted by server restart"
	QueueFullMessage      = "Generation queue is full, please retry"
)

// TimeoutMessage is the item error recorded when a model call exceeds d.
func TimeoutMessage(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("Generation timed out (%d minute limit)", int(d/time.Minute))
	}
	if d >= time.Second && d%time.Second == 0 {
		return fmt.Sprintf("Generation timed out (%d second limit)", int(d/time.Second))
	}
	return fmt.Sprintf("Generation timed out (%s limit)", d)
}

// ClassifyFailure turns a failed call into the message stored on the item.
// v is either an error or a recovered panic value.
//
// Provider bodies win over wrapper messages: for a RetryError the last
// attempt's body is preferred, then the first attempt body that carries a
// message, then the composite message. Anything that is not an error yields
// DefaultFailureMessage.
func ClassifyFailure(v any) string {
	err, ok := v.(error)
	if !ok || err == nil {
		return DefaultFailureMessage
	}

	var retryErr *RetryError
	if errors.As(err, &retryErr) {
		if msg, ok := apiBodyMessage(retryErr.LastError); ok {
			return msg
		}
		for _, attempt := range retryErr.Errors {
			if msg, ok := apiBodyMessage(attempt); ok {
				return msg
			}
		}
		return nonEmpty(retryErr.Error())
	}

	var apiErr *APICallError
	if errors.As(err, &apiErr) {
		if msg, ok := bodyMessage(apiErr.ResponseBody); ok {
			return msg
		}
		return nonEmpty(apiErr.Error())
	}

	return nonEmpty(err.Error())
}

func apiBodyMessage(err error) (string, bool) {
	var apiErr *APICallError
	if err == nil || !errors.As(err, &apiErr) {
		return "", false
	}
	return bodyMessage(apiErr.ResponseBody)
}

// bodyMessage extracts error.message from a provider response body.
func bodyMessage(body string) (string, bool) {
	if strings.TrimSpace(body) == "" {
		return "", false
	}
	var payload struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return "", false
	}
	if payload.Error == nil || strings.TrimSpace(payload.Error.Message) == "" {
		return "", false
	}
	return payload.Error.Message, true
}

func nonEmpty(msg string) string {
	if strings.TrimSpace(msg) == "" {
		return DefaultFailureMessage
	}
	return msg
}
