// Package faults defines the error taxonomy shared by the scraping,
// delivery and worker layers. Callers switch on the Kind of a Fault
// instead of matching substrings in error text.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the system must react to it.
type Kind string

const (
	// KindTransient failures are retried with backoff.
	KindTransient Kind = "transient"
	// KindCaptcha is fatal to the current worker loop; an operator must
	// re-authenticate the browser session before anything can proceed.
	KindCaptcha Kind = "captcha"
	// KindSessionExpired is reported to the operator; the loop continues
	// but is unlikely to succeed until reconnection.
	KindSessionExpired Kind = "session_expired"
	// KindPermanent failures are never retried.
	KindPermanent Kind = "permanent"
)

// Fault is an error carrying an explicit failure kind.
type Fault struct {
	Kind Kind
	Msg  string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// New creates a Fault with the given kind and message
func New(kind Kind, msg string) *Fault {
	return &Fault{Kind: kind, Msg: msg}
}

// Wrap creates a Fault wrapping an underlying error
func Wrap(kind Kind, msg string, err error) *Fault {
	return &Fault{Kind: kind, Msg: msg, Err: err}
}

// Captcha creates a fatal captcha fault
func Captcha(msg string) *Fault {
	return New(KindCaptcha, msg)
}

// SessionExpired creates a session-expired fault
func SessionExpired(msg string) *Fault {
	return New(KindSessionExpired, msg)
}

// Transient creates a retryable fault
func Transient(msg string, err error) *Fault {
	return Wrap(KindTransient, msg, err)
}

// KindOf returns the kind of err, or KindTransient for plain errors so
// that unclassified failures stay on the retry path.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindTransient
}

// IsCaptcha reports whether err is a captcha-class fault
func IsCaptcha(err error) bool {
	return KindOf(err) == KindCaptcha
}

// IsSessionExpired reports whether err is a session-expired fault
func IsSessionExpired(err error) bool {
	return KindOf(err) == KindSessionExpired
}
