package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/eventstream/memory"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/keylock"
	"github.com/bypptech/group-wallet-organizer/pkg/logger/mocklogger"
	"github.com/bypptech/group-wallet-organizer/pkg/model/maudit"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
	"github.com/bypptech/group-wallet-organizer/pkg/payout"
	"github.com/bypptech/group-wallet-organizer/pkg/service/sapproval"
	"github.com/bypptech/group-wallet-organizer/pkg/service/saudit"
	"github.com/bypptech/group-wallet-organizer/pkg/service/scollection"
	"github.com/bypptech/group-wallet-organizer/pkg/service/sescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/service/spolicy"
	"github.com/bypptech/group-wallet-organizer/pkg/service/svault"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc/gen"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlitemem"
)

type BaseDBQueries struct {
	Queries *gen.Queries
	DB      *sql.DB
	t       *testing.T
	ctx     context.Context
	cleanup func()
}

// BaseTestServices wires every service over one in-memory database. The
// dispatcher is a recording fake and the key lock is shared between the
// escrow and approval services like it is in production wiring.
type BaseTestServices struct {
	DB         *sql.DB
	Vs         svault.VaultService
	As         saudit.AuditService
	Ps         spolicy.PolicyService
	Es         sescrow.EscrowService
	Aps        sapproval.ApprovalService
	Cs         scollection.CollectionService
	Dispatcher *payout.Recorder
	Locks      *keylock.KeyLock
}

func CreateBaseDB(ctx context.Context, t *testing.T) *BaseDBQueries {
	db, cleanup, err := sqlitemem.NewSQLiteMem(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return &BaseDBQueries{Queries: gen.New(db), DB: db, t: t, ctx: ctx, cleanup: cleanup}
}

func (c *BaseDBQueries) GetBaseServices() BaseTestServices {
	queries := c.Queries

	mockLogger := mocklogger.NewMockLogger()
	streamer := memory.NewInMemorySyncStreamer[saudit.Topic, maudit.Event]()
	locks := keylock.New()
	dispatcher := payout.NewRecorder()

	as := saudit.New(queries, streamer, mockLogger)
	vs := svault.New(queries)
	ps := spolicy.New(c.DB, queries, vs, as)
	es := sescrow.New(c.DB, queries, vs, ps, locks, dispatcher, as)
	aps := sapproval.New(c.DB, queries, vs, es, locks, as)
	cs := scollection.New(c.DB, queries, as)

	return BaseTestServices{
		DB:         c.DB,
		Vs:         vs,
		As:         as,
		Ps:         ps,
		Es:         es,
		Aps:        aps,
		Cs:         cs,
		Dispatcher: dispatcher,
		Locks:      locks,
	}
}

func (c *BaseDBQueries) Close() {
	c.cleanup()
}

// SeedVault creates a vault with the given members and returns it. Member
// ids come back in the order the weights were given.
func SeedVault(ctx context.Context, t *testing.T, vs svault.VaultService, members []mvault.Member) (*mvault.Vault, []mvault.Member) {
	t.Helper()
	vault := &mvault.Vault{
		ID:        idwrap.NewNow(),
		Name:      "test vault",
		CreatedAt: time.Now(),
	}
	if err := vs.Create(ctx, vault); err != nil {
		t.Fatal(err)
	}
	seeded := make([]mvault.Member, 0, len(members))
	for _, m := range members {
		m.VaultID = vault.ID
		if m.ID.IsZero() {
			m.ID = idwrap.NewNow()
		}
		if err := vs.CreateMember(ctx, &m); err != nil {
			t.Fatal(err)
		}
		seeded = append(seeded, m)
	}
	return vault, seeded
}
