package poll

import (
	"context"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/secrets"
)

// IMAPDialer connects to the configured mailbox with the password from the keychain.
func IMAPDialer(log logrus.FieldLogger) Dialer {
	return func(ctx context.Context, cfg config.Config) (Source, error) {
		pw, err := secrets.GetIMAPPassword(secrets.IMAPKeyringAccount(cfg))
		if err != nil {
			return nil, err
		}
		c, err := mailbox.Dial(ctx, mailbox.Options{
			Addr:     mailbox.Addr(cfg.Email.IMAPHost, cfg.Email.IMAPPort),
			Username: cfg.Email.Username,
			Password: pw,
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
