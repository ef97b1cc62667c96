package main

import (
	"context"
	"errors"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/app"
	"github.com/ferdiebergado/gdprkit/internal/compliance"
	"github.com/ferdiebergado/gdprkit/internal/erasure"
	"github.com/ferdiebergado/gdprkit/internal/export"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/provider"
	"github.com/ferdiebergado/gdprkit/internal/retention"
)

// Backend is what the commands operate on.
type Backend interface {
	Migrate(ctx context.Context) ([]string, error)
	Cleanup(ctx context.Context, dryRun bool) (*retention.Report, error)
	Erase(ctx context.Context, userID, reason, actorID string) (*erasure.Result, error)
	Export(ctx context.Context, userID string) (*export.Bundle, error)
	Rekey(ctx context.Context, batch int) (int, error)
	Report(ctx context.Context) (*compliance.Report, error)
	DataKey(ctx context.Context, masterKeyID string) (string, error)
	Close(ctx context.Context) error
}

// Opener connects a Backend for one command.
type Opener func(ctx context.Context) (Backend, error)

type liveBackend struct {
	p       *provider.Provider
	m       *app.Modules
	cleanup func()
}

var _ Backend = (*liveBackend)(nil)

func openLive(ctx context.Context) (Backend, error) {
	p, cleanup, err := app.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	m := app.NewModules(p)
	m.Start()
	return &liveBackend{p: p, m: m, cleanup: cleanup}, nil
}

func (b *liveBackend) Migrate(ctx context.Context) ([]string, error) {
	return db.Migrate(ctx, b.p.DB)
}

func (b *liveBackend) Cleanup(ctx context.Context, dryRun bool) (*retention.Report, error) {
	return b.m.Retention.Run(ctx, time.Now(), dryRun)
}

func (b *liveBackend) Erase(ctx context.Context, userID, reason, actorID string) (*erasure.Result, error) {
	return b.m.Erasure.Service().EraseWithResult(ctx, userID, reason, actorID)
}

func (b *liveBackend) Export(ctx context.Context, userID string) (*export.Bundle, error) {
	return b.m.Export.Service().Build(ctx, userID)
}

func (b *liveBackend) Rekey(ctx context.Context, batch int) (int, error) {
	return b.m.User.Service().RekeyAll(ctx, batch)
}

func (b *liveBackend) Report(ctx context.Context) (*compliance.Report, error) {
	return b.m.Compliance.Service().Report(ctx)
}

func (b *liveBackend) DataKey(ctx context.Context, masterKeyID string) (string, error) {
	kmsCfg := b.p.Cfg.Encryption.KMS
	if masterKeyID == "" {
		masterKeyID = kmsCfg.MasterKeyID
	}
	if masterKeyID == "" {
		return "", errors.New("no kms master key given")
	}

	client, err := crypto.NewKMSClient(ctx, kmsCfg.Region)
	if err != nil {
		return "", err
	}
	return crypto.NewKMSKeySource(client).NewDataKey(ctx, masterKeyID)
}

// Close drains the mail queue so confirmations sent by the command are
// delivered before the process exits.
func (b *liveBackend) Close(ctx context.Context) error {
	err := errors.Join(b.m.Close(ctx), b.p.Close())
	b.cleanup()
	return err
}
