package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/shelterbill/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubResolver struct {
	versions []catalogdomain.ActionVersion
	err      error
}

func (r *stubResolver) ResolveTx(_ context.Context, _ *gorm.DB, actionName string, onDate time.Time) (*catalogdomain.ActionVersion, error) {
	if r.err != nil {
		return nil, r.err
	}
	code, err := catalogdomain.ActionCode(actionName)
	if err != nil {
		return nil, err
	}
	var matching []catalogdomain.ActionVersion
	for _, v := range r.versions {
		if v.ActionCode == code {
			matching = append(matching, v)
		}
	}
	v := catalogdomain.ResolveOn(matching, onDate)
	if v == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return v, nil
}

func vaccineVersionA() catalogdomain.ActionVersion {
	to := dates.New(2024, time.June, 30)
	return catalogdomain.ActionVersion{
		ID:           snowflake.ID(101),
		ActionCode:   "vaccine",
		ActionName:   "Vaccine",
		ValidFrom:    dates.New(2024, time.January, 1),
		ValidTo:      &to,
		SellingPrice: 1000,
		ProcedureFee: 200,
		Currency:     "JPY",
		Unit:         "dose",
	}
}

func newTestService(resolver catalogdomain.Resolver) billingdomain.Service {
	return New(Params{Log: zap.NewNop(), Resolver: resolver})
}

func TestResolveAndSnapshotComputesAmount(t *testing.T) {
	svc := newTestService(&stubResolver{versions: []catalogdomain.ActionVersion{vaccineVersionA()}})

	snap, err := svc.ResolveAndSnapshot(context.Background(), nil, "Vaccine", dates.New(2024, time.March, 10), 2*money.QuantityScale)
	require.NoError(t, err)

	assert.Equal(t, snowflake.ID(101), snap.ResolvedVersionID)
	assert.Equal(t, int64(1000), snap.UnitPrice)
	assert.Equal(t, int64(200), snap.ProcedureFee)
	assert.Equal(t, "JPY", snap.Currency)
	assert.Equal(t, "dose", snap.Unit)
	assert.Equal(t, int64(2200), snap.ComputedAmount)
}

func TestResolveAndSnapshotZeroQuantityChargesFeeOnly(t *testing.T) {
	svc := newTestService(&stubResolver{versions: []catalogdomain.ActionVersion{vaccineVersionA()}})

	snap, err := svc.ResolveAndSnapshot(context.Background(), nil, "vaccine", dates.New(2024, time.March, 10), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(200), snap.ComputedAmount)
}

func TestResolveAndSnapshotRoundsFractionalQuantity(t *testing.T) {
	version := vaccineVersionA()
	version.Currency = "USD"
	version.SellingPrice = 333 // 3.33
	version.ProcedureFee = 0
	svc := newTestService(&stubResolver{versions: []catalogdomain.ActionVersion{version}})

	// 3.33 * 1.5 = 4.995 -> 5.00
	snap, err := svc.ResolveAndSnapshot(context.Background(), nil, "Vaccine", dates.New(2024, time.March, 10), 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), snap.ComputedAmount)
}

func TestResolveAndSnapshotNoPrice(t *testing.T) {
	svc := newTestService(&stubResolver{versions: []catalogdomain.ActionVersion{vaccineVersionA()}})

	_, err := svc.ResolveAndSnapshot(context.Background(), nil, "Vaccine", dates.New(2024, time.August, 1), 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, billingdomain.ErrNoPriceForDate)

	var noPrice *billingdomain.NoPriceForDateError
	require.True(t, errors.As(err, &noPrice))
	assert.Equal(t, "Vaccine", noPrice.Action)
	assert.Equal(t, dates.New(2024, time.August, 1), noPrice.Date)
	assert.Contains(t, err.Error(), billingdomain.NoPriceForDateMessage)
}

func TestResolveAndSnapshotPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := newTestService(&stubResolver{err: boom})

	_, err := svc.ResolveAndSnapshot(context.Background(), nil, "Vaccine", dates.New(2024, time.March, 10), 1000)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, billingdomain.ErrNoPriceForDate)
}

func TestResolveAndSnapshotRejectsNegativeQuantity(t *testing.T) {
	svc := newTestService(&stubResolver{versions: []catalogdomain.ActionVersion{vaccineVersionA()}})

	_, err := svc.ResolveAndSnapshot(context.Background(), nil, "Vaccine", dates.New(2024, time.March, 10), -1)
	assert.ErrorIs(t, err, money.ErrInvalidQuantity)
}
