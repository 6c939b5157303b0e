// Package status defines the envelope returned by mutating endpoints and
// pushed to users over the notification channel.
package status

import "net/http"

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Envelope struct {
	Status   int      `json:"status"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Payload  any      `json:"payload,omitempty"`
}

func Success(message string, payload any) *Envelope {
	return &Envelope{Status: http.StatusOK, Severity: SeveritySuccess, Message: message, Payload: payload}
}

func Info(message string) *Envelope {
	return &Envelope{Status: http.StatusOK, Severity: SeverityInfo, Message: message}
}

func Warning(message string, payload any) *Envelope {
	return &Envelope{Status: http.StatusOK, Severity: SeverityWarning, Message: message, Payload: payload}
}

func Error(code int, message string) *Envelope {
	return &Envelope{Status: code, Severity: SeverityError, Message: message}
}
