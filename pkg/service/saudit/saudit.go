package saudit

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/bypptech/group-wallet-organizer/pkg/dbtime"
	"github.com/bypptech/group-wallet-organizer/pkg/eventstream"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/maudit"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc/gen"
)

// Topic keys the audit stream by vault so subscribers can follow one vault.
type Topic struct {
	VaultID idwrap.IDWrap
}

type AuditService struct {
	queries *gen.Queries
	stream  eventstream.SyncStreamer[Topic, maudit.Event]
	logger  *slog.Logger
}

func New(queries *gen.Queries, stream eventstream.SyncStreamer[Topic, maudit.Event], logger *slog.Logger) AuditService {
	return AuditService{queries: queries, stream: stream, logger: logger}
}

func (as AuditService) TX(tx *sql.Tx) AuditService {
	return AuditService{queries: as.queries.WithTx(tx), stream: as.stream, logger: as.logger}
}

// Subscribe follows one vault's audit feed. The channel closes when ctx is
// cancelled or the streamer shuts down.
func (as AuditService) Subscribe(ctx context.Context, vaultID idwrap.IDWrap) (<-chan eventstream.Event[Topic, maudit.Event], error) {
	return as.stream.Subscribe(ctx, func(t Topic) bool {
		return t.VaultID.Compare(vaultID) == 0
	})
}

func ConvertToModelEvent(event gen.AuditEvent) maudit.Event {
	m := maudit.Event{
		ID:        event.ID,
		UUID:      event.EventUuid,
		Kind:      maudit.Kind(event.Kind),
		VaultID:   event.VaultID,
		EntityID:  event.EntityID,
		Reason:    event.Reason,
		Detail:    event.Detail,
		CreatedAt: dbtime.Unix(event.CreatedAt),
	}
	if event.ActorID != nil {
		id := idwrap.NewFromBytesMust(event.ActorID)
		m.ActorID = &id
	}
	return m
}

// Emit records one audit event and publishes it to the stream. It is
// fire-and-forget for callers: failures are logged, never propagated, so an
// audit hiccup cannot roll back a domain transition that already happened.
func (as AuditService) Emit(ctx context.Context, kind maudit.Kind, vaultID, entityID idwrap.IDWrap, actorID *idwrap.IDWrap, reason string, detail any) {
	event := maudit.Event{
		ID:        idwrap.NewNow(),
		UUID:      uuid.NewString(),
		Kind:      kind,
		VaultID:   vaultID,
		EntityID:  entityID,
		ActorID:   actorID,
		Reason:    reason,
		CreatedAt: dbtime.DBNow(),
	}
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			as.logger.Error("audit detail marshal failed", "kind", kind, "error", err)
		} else {
			event.Detail = string(data)
		}
	}

	var actorBytes []byte
	if actorID != nil {
		actorBytes = actorID.Bytes()
	}
	err := as.queries.CreateAuditEvent(ctx, gen.CreateAuditEventParams{
		ID:        event.ID,
		EventUuid: event.UUID,
		Kind:      string(kind),
		VaultID:   vaultID,
		EntityID:  entityID,
		ActorID:   actorBytes,
		Reason:    reason,
		Detail:    event.Detail,
		CreatedAt: event.CreatedAt.Unix(),
	})
	if err != nil {
		as.logger.Error("audit event write failed", "kind", kind, "vault", vaultID.String(), "error", err)
		return
	}

	if as.stream != nil {
		as.stream.Publish(Topic{VaultID: vaultID}, event)
	}
}

func (as AuditService) ListByVault(ctx context.Context, vaultID idwrap.IDWrap, limit int64) ([]maudit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := as.queries.GetAuditEventsByVaultID(ctx, gen.GetAuditEventsByVaultIDParams{VaultID: vaultID, Limit: limit})
	if err != nil {
		return nil, err
	}
	events := make([]maudit.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, ConvertToModelEvent(row))
	}
	return events, nil
}
