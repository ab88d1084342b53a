package activity

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/territory-cli/internal/model"
)

func TestAggregate_SumsPerZipAndRep(t *testing.T) {
	rows := []Row{
		{Zip: "60601", RepEmail: "Alice@X.com ", DealCount: 2, Status: "Active"},
		{Zip: "60601", RepEmail: "alice@x.com", DealCount: 3, Status: "inactive"},
		{Zip: "60601", RepEmail: "bob@x.com", DealCount: 4, Status: "1"},
		{Zip: "02139", RepEmail: "bob@x.com", DealCount: 1, Status: "no"},
	}

	res := Aggregate(rows, Options{})
	require.Len(t, res.Records, 3)

	assert.Equal(t, model.RepActivityRecord{Zip: "02139", RepEmail: "bob@x.com", DealCount: 1, Status: model.RepStatusInactive}, res.Records[0])
	assert.Equal(t, model.RepActivityRecord{Zip: "60601", RepEmail: "alice@x.com", DealCount: 5, Status: model.RepStatusActive}, res.Records[1])
	assert.Equal(t, model.RepActivityRecord{Zip: "60601", RepEmail: "bob@x.com", DealCount: 4, Status: model.RepStatusActive}, res.Records[2])

	owner := res.Active["60601"]
	assert.Equal(t, "alice@x.com", owner.OwnerEmail)
	assert.Equal(t, int64(5), owner.OwnerDealCount)
	assert.Equal(t, int64(9), owner.TotalDealCount)
	assert.Equal(t, []string{"02139", "60601"}, res.ActiveZips())
}

func TestAggregate_DropsZeroTotals(t *testing.T) {
	rows := []Row{
		{Zip: "60601", RepEmail: "alice@x", DealCount: 0},
		{Zip: "60601", RepEmail: "alice@x", DealCount: 0},
		{Zip: "02139", RepEmail: "bob@x", DealCount: 0},
		{Zip: "02139", RepEmail: "carol@x", DealCount: 1},
	}

	res := Aggregate(rows, Options{})
	assert.Equal(t, 2, res.ZeroCountPairs)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "carol@x", res.Records[0].RepEmail)
	assert.NotContains(t, res.Active, "60601")
	assert.Equal(t, "carol@x", res.Active["02139"].OwnerEmail)
}

func TestAggregate_TieBreaksOnSmallestEmail(t *testing.T) {
	rows := []Row{
		{Zip: "60601", RepEmail: "zed@x", DealCount: 3},
		{Zip: "60601", RepEmail: "bob@x", DealCount: 3},
		{Zip: "60601", RepEmail: "mia@x", DealCount: 3},
	}

	for i := 0; i < 20; i++ {
		shuffled := append([]Row(nil), rows...)
		rand.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		res := Aggregate(shuffled, Options{})
		assert.Equal(t, "bob@x", res.Active["60601"].OwnerEmail)
		assert.Equal(t, int64(9), res.Active["60601"].TotalDealCount)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	rows := []Row{
		{Zip: "60601", RepEmail: "a@x", RepName: "Ann", DealCount: 1, Status: "active"},
		{Zip: "60601", RepEmail: "A@x", RepName: "Annie", DealCount: 2},
		{Zip: "02139", RepEmail: "b@x", RepName: "Ben", DealCount: 5},
		{Zip: "10001", RepEmail: "c@x", DealCount: 0},
	}
	want := Aggregate(rows, Options{})

	reversed := make([]Row, len(rows))
	for i, r := range rows {
		reversed[len(rows)-1-i] = r
	}
	got := Aggregate(reversed, Options{})

	assert.Equal(t, want.Records, got.Records)
	assert.Equal(t, want.Active, got.Active)
	assert.Equal(t, "Ann", got.Records[1].RepName)
}

func TestAggregate_RequireActiveStatus(t *testing.T) {
	rows := []Row{
		{Zip: "60601", RepEmail: "alice@x", DealCount: 10, Status: "INACTIVE"},
		{Zip: "60601", RepEmail: "bob@x", DealCount: 2, Status: "ACTIVE"},
		{Zip: "02139", RepEmail: "carol@x", DealCount: 4, Status: "inactive"},
	}

	loose := Aggregate(rows, Options{})
	assert.Equal(t, "alice@x", loose.Active["60601"].OwnerEmail)
	assert.Contains(t, loose.Active, "02139")

	strict := Aggregate(rows, Options{RequireActiveStatus: true})
	assert.Equal(t, "bob@x", strict.Active["60601"].OwnerEmail)
	assert.Equal(t, int64(12), strict.Active["60601"].TotalDealCount)
	assert.NotContains(t, strict.Active, "02139")
	assert.Len(t, strict.Records, 3)
}

func TestAggregate_SkipsMissingEmail(t *testing.T) {
	res := Aggregate([]Row{{Zip: "60601", RepEmail: "  ", DealCount: 4}}, Options{})
	assert.Empty(t, res.Records)
	assert.Empty(t, res.Active)
}

func TestAggregate_SaturatesHugeCounts(t *testing.T) {
	const big = 9_000_000_000_000_000_000
	res := Aggregate([]Row{
		{Zip: "10001", RepEmail: "a@x", DealCount: big, Status: "active"},
		{Zip: "10001", RepEmail: "a@x", DealCount: big, Status: "active"},
		{Zip: "10001", RepEmail: "b@x", DealCount: big, Status: "active"},
	}, Options{})

	require.Len(t, res.Records, 2)
	assert.Equal(t, int64(math.MaxInt64), res.Records[0].DealCount)
	a := res.Active["10001"]
	assert.Equal(t, "a@x", a.OwnerEmail)
	assert.Equal(t, int64(math.MaxInt64), a.OwnerDealCount)
	assert.Equal(t, int64(math.MaxInt64), a.TotalDealCount)
}

func TestIsActiveStatus(t *testing.T) {
	for _, s := range []string{"1", "Active", " TRUE ", "yes"} {
		assert.True(t, IsActiveStatus(s), s)
	}
	for _, s := range []string{"", "0", "inactive", "no", "closed"} {
		assert.False(t, IsActiveStatus(s), s)
	}
}
