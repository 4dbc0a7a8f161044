package syncclient

import (
	"context"
	"fmt"

	"github.com/oncetrange/memcard/internal/cards"
	"go.uber.org/zap"
)

// LocalStore is the part of cards.Store a sync replaces.
type LocalStore interface {
	All() []cards.Card
	ReplaceAll(ctx context.Context, collection []cards.Card) error
}

// Report describes one completed sync.
type Report struct {
	Local  int
	Remote int
	Merged int
}

// Sync logs in, merges the remote collection into the local one with local
// cards winning, stores the result locally, pushes it back and logs out.
// The local store is untouched when pulling fails.
func (c *Client) Sync(ctx context.Context, store LocalStore, username, password string) (Report, error) {
	session, err := c.Login(ctx, username, password)
	if err != nil {
		return Report{}, err
	}
	defer func() {
		if err := c.Logout(context.WithoutCancel(ctx), session); err != nil {
			c.logger.Warn("failed to log out after sync", zap.Error(err))
		}
	}()

	remote, err := c.Pull(ctx, session)
	if err != nil {
		return Report{}, fmt.Errorf("syncclient: pull: %w", err)
	}
	local := store.All()
	merged := cards.Merge(local, remote)
	report := Report{Local: len(local), Remote: len(remote), Merged: len(merged)}

	if err := store.ReplaceAll(ctx, merged); err != nil {
		return report, fmt.Errorf("syncclient: store merged cards: %w", err)
	}
	if err := c.Push(ctx, session, merged); err != nil {
		return report, fmt.Errorf("syncclient: push: %w", err)
	}

	c.logger.Info("cards synced",
		zap.String("username", session.Username),
		zap.Int("local", report.Local),
		zap.Int("remote", report.Remote),
		zap.Int("merged", report.Merged),
	)
	return report, nil
}
