package clients

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	// KindTransient -- сеть, таймаут, 5xx, 429. Повторяется.
	KindTransient ErrorKind = iota
	// KindAuth -- 401/403. Не повторяется, импорт агрегата прекращается.
	KindAuth
	// KindMalformed -- тело ответа не разбирается.
	KindMalformed
	// KindStatus -- прочие неожиданные коды ответа.
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindMalformed:
		return "malformed"
	case KindStatus:
		return "status"
	}
	return "unknown"
}

type ProviderError struct {
	Provider   string
	Endpoint   string
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %s error", e.Provider, e.Endpoint, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests || code >= 500:
		return KindTransient
	}
	return KindStatus
}
