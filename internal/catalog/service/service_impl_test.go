package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"github.com/smallbiznis/shelterbill/internal/catalog/repository"
	"github.com/smallbiznis/shelterbill/internal/clock"
	"github.com/smallbiznis/shelterbill/internal/lock"
	"github.com/smallbiznis/shelterbill/internal/migration"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

func setupService(t *testing.T, locker lock.Locker) (*Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)),
		Repo:   repository.Provide(),
		Locker: locker,
	})
	return svc, conn
}

func strPtr(s string) *string { return &s }

func jpyVersion(name, from string, to *string, price, fee int64) catalogdomain.AddVersionRequest {
	return catalogdomain.AddVersionRequest{
		ActionName:   name,
		ValidFrom:    from,
		ValidTo:      to,
		CostPrice:    decimal.NewFromInt(price / 2),
		SellingPrice: decimal.NewFromInt(price),
		ProcedureFee: decimal.NewFromInt(fee),
		Currency:     "jpy",
		Unit:         "dose",
	}
}

func TestAddVersionStoresNormalizedVersion(t *testing.T) {
	svc, _ := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()

	resp, err := svc.AddVersion(ctx, jpyVersion(" Vaccine ", "2024-01-01", strPtr("2024-06-30"), 1000, 200))
	require.NoError(t, err)

	assert.Equal(t, "vaccine", resp.ActionCode)
	assert.Equal(t, "Vaccine", resp.ActionName)
	assert.Equal(t, "2024-01-01", resp.ValidFrom)
	require.NotNil(t, resp.ValidTo)
	assert.Equal(t, "2024-06-30", *resp.ValidTo)
	assert.Equal(t, "1000", resp.SellingPrice)
	assert.Equal(t, "200", resp.ProcedureFee)
	assert.Equal(t, "JPY", resp.Currency)
	assert.Equal(t, "active", resp.Status)
}

func TestAddVersionRejectsOverlapWithConflictingVersion(t *testing.T) {
	svc, _ := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()

	versionA, err := svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-01-01", strPtr("2024-06-30"), 1000, 200))
	require.NoError(t, err)

	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-04-01", nil, 1100, 200))
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogdomain.ErrOverlap)

	var overlap *catalogdomain.OverlapError
	require.True(t, errors.As(err, &overlap))
	require.NotNil(t, overlap.Conflict)
	assert.Equal(t, versionA.ID, overlap.Conflict.ID.String())

	versions, err := svc.ListVersions(ctx, "Vaccine")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestAddVersionBoundaries(t *testing.T) {
	svc, _ := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()

	_, err := svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-01-01", strPtr("2024-06-30"), 1000, 200))
	require.NoError(t, err)

	// both bounds are inclusive, so sharing the end date overlaps
	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-06-30", nil, 1100, 200))
	assert.ErrorIs(t, err, catalogdomain.ErrOverlap)

	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-07-01", nil, 1100, 200))
	require.NoError(t, err)

	// a second open version always overlaps the first
	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "2025-01-01", nil, 1200, 200))
	assert.ErrorIs(t, err, catalogdomain.ErrOverlap)

	// an open version before an existing later one overlaps it
	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "2023-01-01", nil, 900, 200))
	assert.ErrorIs(t, err, catalogdomain.ErrOverlap)

	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "2023-01-01", strPtr("2023-12-31"), 900, 200))
	require.NoError(t, err)

	// other actions are independent
	_, err = svc.AddVersion(ctx, jpyVersion("Deworming", "2024-01-01", nil, 500, 0))
	require.NoError(t, err)
}

func TestAddVersionValidation(t *testing.T) {
	svc, _ := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()

	_, err := svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-06-30", strPtr("2024-01-01"), 1000, 200))
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidRange)
	var rangeErr *catalogdomain.InvalidRangeError
	assert.True(t, errors.As(err, &rangeErr))

	_, err = svc.AddVersion(ctx, jpyVersion("  ", "2024-01-01", nil, 1000, 200))
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidActionName)

	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "not-a-date", nil, 1000, 200))
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidDate)

	req := jpyVersion("Vaccine", "2024-01-01", nil, 1000, 200)
	req.Currency = "yen"
	_, err = svc.AddVersion(ctx, req)
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidCurrency)

	req = jpyVersion("Vaccine", "2024-01-01", nil, 1000, 200)
	req.SellingPrice = decimal.RequireFromString("10.5") // JPY has no minor unit
	_, err = svc.AddVersion(ctx, req)
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidPrice)

	req = jpyVersion("Vaccine", "2024-01-01", nil, 1000, 200)
	req.ProcedureFee = decimal.NewFromInt(-1)
	_, err = svc.AddVersion(ctx, req)
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidPrice)

	req = jpyVersion("Vaccine", "2024-01-01", nil, 1000, 200)
	req.Currency = "usd"
	req.SellingPrice = decimal.RequireFromString("12.50")
	resp, err := svc.AddVersion(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "12.50", resp.SellingPrice)
	assert.Equal(t, "USD", resp.Currency)
}

func TestResolveIsDeterministicAndInclusive(t *testing.T) {
	svc, _ := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()

	a, err := svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-01-01", strPtr("2024-06-30"), 1000, 200))
	require.NoError(t, err)
	b, err := svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-08-01", nil, 1200, 200))
	require.NoError(t, err)

	cases := []struct {
		day  time.Time
		want string
	}{
		{dates.New(2024, time.January, 1), a.ID},
		{dates.New(2024, time.March, 10), a.ID},
		{dates.New(2024, time.June, 30), a.ID},
		{dates.New(2024, time.August, 1), b.ID},
		{dates.New(2030, time.January, 1), b.ID},
	}
	for _, tc := range cases {
		for i := 0; i < 3; i++ {
			got, err := svc.Resolve(ctx, "VACCINE", tc.day)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.ID, dates.Format(tc.day))
		}
	}

	for _, gap := range []time.Time{dates.New(2023, time.December, 31), dates.New(2024, time.July, 1), dates.New(2024, time.July, 31)} {
		_, err := svc.Resolve(ctx, "Vaccine", gap)
		assert.ErrorIs(t, err, catalogdomain.ErrNotFound, dates.Format(gap))
	}

	_, err = svc.Resolve(ctx, "Unknown", dates.New(2024, time.March, 10))
	assert.ErrorIs(t, err, catalogdomain.ErrNotFound)
}

func TestCloseOpenVersion(t *testing.T) {
	svc, _ := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()

	_, err := svc.CloseOpenVersion(ctx, catalogdomain.CloseVersionRequest{ActionName: "Vaccine", ValidTo: "2024-06-30"})
	assert.ErrorIs(t, err, catalogdomain.ErrNotFound)

	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-01-01", nil, 1000, 200))
	require.NoError(t, err)

	_, err = svc.CloseOpenVersion(ctx, catalogdomain.CloseVersionRequest{ActionName: "Vaccine", ValidTo: "2023-12-31"})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidRange)

	closed, err := svc.CloseOpenVersion(ctx, catalogdomain.CloseVersionRequest{ActionName: "Vaccine", ValidTo: "2024-06-30"})
	require.NoError(t, err)
	require.NotNil(t, closed.ValidTo)
	assert.Equal(t, "2024-06-30", *closed.ValidTo)

	_, err = svc.CloseOpenVersion(ctx, catalogdomain.CloseVersionRequest{ActionName: "Vaccine", ValidTo: "2024-07-31"})
	assert.ErrorIs(t, err, catalogdomain.ErrNoOpenVersion)

	_, err = svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-07-01", nil, 1100, 200))
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "Vaccine", dates.New(2024, time.July, 1))
	require.NoError(t, err)
}

func TestListActiveOn(t *testing.T) {
	svc, _ := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()

	_, err := svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-01-01", strPtr("2024-06-30"), 1000, 200))
	require.NoError(t, err)
	_, err = svc.AddVersion(ctx, jpyVersion("Deworming", "2024-03-01", nil, 500, 0))
	require.NoError(t, err)
	_, err = svc.AddVersion(ctx, jpyVersion("Microchip", "2025-01-01", nil, 3000, 0))
	require.NoError(t, err)

	active, err := svc.ListActiveOn(ctx, dates.New(2024, time.March, 1))
	require.NoError(t, err)
	codes := make([]string, 0, len(active))
	for _, v := range active {
		codes = append(codes, v.ActionCode)
	}
	assert.Equal(t, []string{"deworming", "vaccine"}, codes)

	active, err = svc.ListActiveOn(ctx, dates.New(2024, time.July, 1))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "deworming", active[0].ActionCode)
}

func TestRemoveVersion(t *testing.T) {
	svc, conn := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()

	free, err := svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-01-01", strPtr("2024-06-30"), 1000, 200))
	require.NoError(t, err)
	used, err := svc.AddVersion(ctx, jpyVersion("Vaccine", "2024-07-01", nil, 1100, 200))
	require.NoError(t, err)

	usedID, err := snowflake.ParseString(used.ID)
	require.NoError(t, err)
	require.NoError(t, conn.Exec(
		`INSERT INTO service_records (id, subject_id, service_date, action_code, action_name, quantity,
			billing_resolved_version_id, billing_unit_price, billing_procedure_fee, billing_currency, billing_computed_amount,
			created_at, updated_at)
		 VALUES (1, '7', ?, 'vaccine', 'Vaccine', 1000, ?, 1100, 200, 'JPY', 1300, ?, ?)`,
		dates.New(2024, time.July, 2), usedID, time.Now().UTC(), time.Now().UTC(),
	).Error)

	err = svc.RemoveVersion(ctx, used.ID)
	assert.ErrorIs(t, err, catalogdomain.ErrVersionInUse)

	require.NoError(t, svc.RemoveVersion(ctx, free.ID))
	_, err = svc.GetVersion(ctx, free.ID)
	assert.ErrorIs(t, err, catalogdomain.ErrNotFound)

	assert.ErrorIs(t, svc.RemoveVersion(ctx, "abc"), catalogdomain.ErrInvalidID)
	assert.ErrorIs(t, svc.RemoveVersion(ctx, free.ID), catalogdomain.ErrNotFound)
}

func TestConcurrentAddVersionAdmitsOnlyOne(t *testing.T) {
	for name, locker := range map[string]lock.Locker{
		"local lock": lock.NewLocalLocker(),
		"row lock":   noopLocker{},
	} {
		t.Run(name, func(t *testing.T) {
			svc, _ := setupService(t, locker)
			ctx := context.Background()

			const writers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				overlaps  int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					from := dates.New(2024, time.January, 1+i)
					_, err := svc.AddVersion(ctx, jpyVersion("Vaccine", dates.Format(from), nil, 1000, 200))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, catalogdomain.ErrOverlap):
						overlaps++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, 1, successes)
			assert.Equal(t, writers-1, overlaps)
		})
	}
}

func TestRandomAddVersionSequenceNeverOverlaps(t *testing.T) {
	svc, conn := setupService(t, lock.NewLocalLocker())
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	base := dates.New(2024, time.January, 1)
	for i := 0; i < 60; i++ {
		from := base.AddDate(0, 0, rng.Intn(365))
		var to *string
		if rng.Intn(4) > 0 {
			end := dates.Format(from.AddDate(0, 0, rng.Intn(40)))
			to = &end
		}
		_, err := svc.AddVersion(ctx, jpyVersion("Vaccine", dates.Format(from), to, 1000, 200))
		if err != nil {
			require.ErrorIs(t, err, catalogdomain.ErrOverlap)
		}
	}

	versions, err := repository.Provide().ListVersions(ctx, conn, "vaccine")
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	open := 0
	for i := range versions {
		if versions[i].IsOpen() {
			open++
		}
		for j := i + 1; j < len(versions); j++ {
			assert.False(t, versions[i].Overlaps(versions[j].ValidFrom, versions[j].ValidTo),
				"versions %s and %s overlap", versions[i].ID, versions[j].ID)
		}
	}
	assert.LessOrEqual(t, open, 1)

	// every covered day resolves to exactly the version that covers it
	for d := base; d.Before(base.AddDate(1, 1, 0)); d = d.AddDate(0, 0, 1) {
		covering := 0
		for i := range versions {
			if versions[i].Covers(d) {
				covering++
			}
		}
		got, err := svc.Resolve(ctx, "Vaccine", d)
		if covering == 0 {
			assert.ErrorIs(t, err, catalogdomain.ErrNotFound)
			continue
		}
		require.Equal(t, 1, covering)
		require.NoError(t, err)
		id, _ := snowflake.ParseString(got.ID)
		v := catalogdomain.ResolveOn(versions, d)
		require.NotNil(t, v)
		assert.Equal(t, v.ID, id)
	}
}
