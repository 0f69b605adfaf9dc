package connectors

import (
	"context"
	"fmt"
	"strings"

	"listquote/internal"
	"listquote/internal/config"
	"listquote/internal/connectors/gmail"
	"listquote/internal/connectors/imap"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.InboundMessage, error)
}

// New builds the connector for provider from cfg.
func New(ctx context.Context, provider string, cfg config.Config) (MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderGmail:
		return gmail.NewConnector(ctx, cfg)
	case ProviderIMAP:
		return imap.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider %q (use gmail or imap)", provider)
	}
}
