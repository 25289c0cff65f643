package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNode = func() *snowflake.Node {
	node, err := snowflake.NewNode(6)
	if err != nil {
		panic(err)
	}
	return node
}()

func setupReferralRepo(t *testing.T) (affiliatedomain.Repository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&affiliatedomain.Referral{}))
	return Provide(), db
}

func TestInsertSecondAttributionIsNoOp(t *testing.T) {
	repo, db := setupReferralRepo(t)
	ctx := context.Background()

	firstReferrer := testNode.Generate()
	secondReferrer := testNode.Generate()
	referred := testNode.Generate()
	now := time.Now()

	require.NoError(t, repo.Insert(ctx, db, &affiliatedomain.Referral{
		ID:         testNode.Generate(),
		ReferrerID: firstReferrer,
		ReferredID: referred,
		Status:     affiliatedomain.ReferralPending,
		CreatedAt:  now,
	}))

	// A second attribution for the same referred user must succeed without
	// raising a statement error, and within an open transaction it must
	// leave later statements runnable.
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.Insert(ctx, tx, &affiliatedomain.Referral{
			ID:         testNode.Generate(),
			ReferrerID: secondReferrer,
			ReferredID: referred,
			Status:     affiliatedomain.ReferralPending,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		return repo.UpdateStatus(ctx, tx, 0, map[string]any{"status": affiliatedomain.ReferralPending})
	})
	require.NoError(t, err)

	referral, err := repo.FindByReferredID(ctx, db, referred)
	require.NoError(t, err)
	require.NotNil(t, referral)
	assert.Equal(t, firstReferrer, referral.ReferrerID)

	count, err := repo.CountByReferrer(ctx, db, secondReferrer)
	require.NoError(t, err)
	assert.Zero(t, count)
}
