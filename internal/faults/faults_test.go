package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "captcha fault", err: Captcha("challenge visible"), expected: KindCaptcha},
		{name: "session expired fault", err: SessionExpired("redirected to login"), expected: KindSessionExpired},
		{name: "transient fault", err: Transient("navigation timeout", errors.New("timeout")), expected: KindTransient},
		{name: "plain error defaults to transient", err: errors.New("boom"), expected: KindTransient},
		{name: "wrapped fault is still detected", err: fmt.Errorf("send failed: %w", Captcha("iframe")), expected: KindCaptcha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestIsCaptcha(t *testing.T) {
	assert.True(t, IsCaptcha(Captcha("challenge")))
	assert.True(t, IsCaptcha(fmt.Errorf("outer: %w", Captcha("challenge"))))
	assert.False(t, IsCaptcha(errors.New("timeout")))
	assert.False(t, IsCaptcha(SessionExpired("login")))
}

func TestIsSessionExpired(t *testing.T) {
	assert.True(t, IsSessionExpired(SessionExpired("login redirect")))
	assert.False(t, IsSessionExpired(Captcha("challenge")))
}

func TestFault_Error(t *testing.T) {
	f := Wrap(KindTransient, "fetch threads", errors.New("net down"))
	assert.Contains(t, f.Error(), "transient")
	assert.Contains(t, f.Error(), "fetch threads")
	assert.Contains(t, f.Error(), "net down")

	assert.Equal(t, "captcha: challenge", Captcha("challenge").Error())
}

func TestFault_Unwrap(t *testing.T) {
	inner := errors.New("net down")
	f := Transient("fetch", inner)
	assert.ErrorIs(t, f, inner)
}
