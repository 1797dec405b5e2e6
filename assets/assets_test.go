package assets_test

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/willemschots/forum/assets"
	"github.com/willemschots/forum/internal/auth"
	"github.com/willemschots/forum/internal/email"
	"github.com/willemschots/forum/internal/email/view"
	"github.com/willemschots/forum/internal/krypto"
)

func Test_EmailTemplates(t *testing.T) {
	token, err := krypto.GenerateToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	sender := email.NewMemorySender()
	svc := email.NewService(view.NewFSRenderer(assets.EmailFS), sender, email.ServiceConfig{
		From:    "forum@example.com",
		BaseURL: &url.URL{Scheme: "https", Host: "forum.example.com"},
	})

	err = svc.Send(context.Background(), auth.SignupConfirmationTemplate, "alice@example.com", auth.SignupConfirmation{
		Username: "alice",
		Token:    token,
	})
	if err != nil {
		t.Fatalf("failed to send email: %v", err)
	}

	msgs := sender.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	if msgs[0].Subject != "Confirm your forum account" {
		t.Errorf("unexpected subject %q", msgs[0].Subject)
	}

	link := "https://forum.example.com/login?token=" + token.String()
	if !strings.Contains(msgs[0].Body, link) {
		t.Errorf("body does not contain %q:\n%s", link, msgs[0].Body)
	}

	if !strings.HasPrefix(msgs[0].Body, "Hi alice,") {
		t.Errorf("unexpected greeting:\n%s", msgs[0].Body)
	}
}
