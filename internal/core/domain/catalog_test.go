package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/core/domain"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	cat, err := domain.DefaultCatalog()
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, b := range cat.Bodies() {
		ids = append(ids, b.Elements.ID())
	}
	assert.Equal(t, []string{"mercury", "earth", "halley", "sedna", "s2", "s-he"}, ids)

	s2, err := cat.Lookup("s2")
	require.NoError(t, err)
	assert.Equal(t, domain.CentralSgrAStar, s2.Central.ID)
	assert.Nil(t, s2.Override)

	he, err := cat.Lookup("s-he")
	require.NoError(t, err)
	require.NotNil(t, he.Override)
	assert.InDelta(t, 520.0, he.Override.Original, 0)
	assert.InDelta(t, he.Override.Adopted, he.Elements.SemiMajorAxis(), 0)
	assert.InDelta(t, 0.985, he.Elements.Eccentricity(), 0)
}

func TestCatalog_LookupUnknown(t *testing.T) {
	t.Parallel()

	cat, err := domain.DefaultCatalog()
	require.NoError(t, err)

	_, err = cat.Lookup("pluto")
	require.ErrorIs(t, err, domain.ErrUnknownBody)
}

func TestCatalog_With(t *testing.T) {
	t.Parallel()

	base, err := domain.DefaultCatalog()
	require.NoError(t, err)

	custom := domain.BodySpec{
		Params: domain.ElementParams{
			ID: "ceres", SemiMajorAxis: 2.77, Eccentricity: 0.0785, PeriodDays: 1680,
			PeriapsisEpoch: time.Date(2022, time.December, 7, 0, 0, 0, 0, time.UTC),
		},
	}

	extended, err := base.With(custom)
	require.NoError(t, err)

	b, err := extended.Lookup("ceres")
	require.NoError(t, err)
	assert.Equal(t, domain.CentralSun, b.Central.ID)

	_, err = base.Lookup("ceres")
	require.ErrorIs(t, err, domain.ErrUnknownBody, "the base catalog must not change")

	_, err = extended.With(custom)
	require.ErrorIs(t, err, domain.ErrInvalidElements)

	custom.Params.ID = "vesta"
	custom.Central = "andromeda"
	_, err = base.With(custom)
	require.ErrorIs(t, err, domain.ErrUnknownCentralBody)
}

func TestPhysicalConstants_SchwarzschildRadius(t *testing.T) {
	t.Parallel()

	c := domain.DefaultPhysicalConstants()

	assert.InDelta(t, 2953.25, c.SchwarzschildRadius(1), 0.01)

	sgra, err := domain.LookupCentralBody("SGRA")
	require.NoError(t, err)
	assert.InDelta(t, 0.082005, c.SchwarzschildRadiusAU(sgra.MassSolar), 1e-5)
}
