package notify

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	n := New(Config{}, &logger)

	assert.False(t, n.Enabled())
	assert.NoError(t, n.TierExpiryNotice(context.Background(), "example.com"))
}

func TestNotifier_TierExpiryNotice(t *testing.T) {
	logger := zerolog.Nop()
	n := New(Config{Host: "smtp.example.com", Port: 587, From: "bot@example.com", AdminTo: "admin@example.com"}, &logger)

	var capturedTo []string
	var capturedMsg []byte

	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		capturedTo = to
		capturedMsg = msg
		return nil
	}

	err := n.TierExpiryNotice(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@example.com"}, capturedTo)
	assert.Contains(t, string(capturedMsg), "example.com")
	assert.Contains(t, string(capturedMsg), "Subject: Listing expired: example.com")
}

func TestNotifier_RepeatedFailureNotice(t *testing.T) {
	logger := zerolog.Nop()
	n := New(Config{Host: "smtp.example.com", Port: 587, From: "bot@example.com", AdminTo: "admin@example.com"}, &logger)

	var capturedMsg []byte

	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		capturedMsg = msg
		return nil
	}

	err := n.RepeatedFailureNotice(context.Background(), "example.com", "two consecutive zero-document crawls")
	require.NoError(t, err)
	assert.Contains(t, string(capturedMsg), "two consecutive zero-document crawls")
}
