package domain

import (
	"testing"
	"time"

	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/stretchr/testify/assert"
)

func day(m time.Month, d int) time.Time { return dates.New(2024, m, d) }

func ptr(t time.Time) *time.Time { return &t }

func TestOverlapsInclusiveBounds(t *testing.T) {
	v := ActionVersion{ValidFrom: day(time.January, 1), ValidTo: ptr(day(time.June, 30))}

	assert.True(t, v.Overlaps(day(time.June, 30), nil))
	assert.True(t, v.Overlaps(day(time.April, 1), ptr(day(time.April, 2))))
	assert.True(t, v.Overlaps(dates.New(2023, time.December, 1), ptr(day(time.January, 1))))
	assert.False(t, v.Overlaps(day(time.July, 1), nil))
	assert.False(t, v.Overlaps(dates.New(2023, time.December, 1), ptr(dates.New(2023, time.December, 31))))

	open := ActionVersion{ValidFrom: day(time.July, 1)}
	assert.True(t, open.Overlaps(dates.New(2030, time.January, 1), nil))
	assert.True(t, open.Overlaps(day(time.January, 1), nil))
	assert.False(t, open.Overlaps(day(time.January, 1), ptr(day(time.June, 30))))
}

func TestResolveOn(t *testing.T) {
	versions := []ActionVersion{
		{ActionCode: "a", ValidFrom: day(time.January, 1), ValidTo: ptr(day(time.January, 31))},
		{ActionCode: "b", ValidFrom: day(time.March, 1), ValidTo: ptr(day(time.March, 31))},
		{ActionCode: "c", ValidFrom: day(time.May, 1)},
	}

	assert.Nil(t, ResolveOn(versions, dates.New(2023, time.December, 31)))
	assert.Equal(t, "a", ResolveOn(versions, day(time.January, 31)).ActionCode)
	assert.Nil(t, ResolveOn(versions, day(time.February, 15)))
	assert.Equal(t, "b", ResolveOn(versions, day(time.March, 1)).ActionCode)
	assert.Nil(t, ResolveOn(versions, day(time.April, 1)))
	assert.Equal(t, "c", ResolveOn(versions, dates.New(2099, time.January, 1)).ActionCode)
	assert.Nil(t, ResolveOn(nil, day(time.January, 1)))
}

func TestActionCode(t *testing.T) {
	code, err := ActionCode("  Rabies Vaccine ")
	assert.NoError(t, err)
	assert.Equal(t, "rabies-vaccine", code)

	other, _ := ActionCode("rabies vaccine")
	assert.Equal(t, code, other)

	_, err = ActionCode("   ")
	assert.ErrorIs(t, err, ErrInvalidActionName)
}
