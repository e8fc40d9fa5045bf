package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/donor-finder/internal/models"
)

func TestBuildListQuery(t *testing.T) {
	q, args := buildListQuery(models.DonorFilter{Limit: 100})
	assert.Equal(t, `SELECT `+donorColumns+` FROM donors WHERE 1=1 ORDER BY available DESC, created_at DESC, id DESC LIMIT $1`, q)
	assert.Equal(t, []any{100}, args)

	q, args = buildListQuery(models.DonorFilter{BloodType: models.ABNeg, Search: "50%_off", Limit: 20})
	assert.Contains(t, q, "blood_type = $1")
	assert.Contains(t, q, "(city ILIKE $2 OR name ILIKE $2)")
	assert.Contains(t, q, "LIMIT $3")
	assert.Equal(t, []any{"AB-", `%50\%\_off%`, 20}, args)
}

func TestNormalizeFilter(t *testing.T) {
	f, err := normalizeFilter(models.DonorFilter{BloodType: "ab+", Search: "  thane "})
	require.NoError(t, err)
	assert.Equal(t, models.DonorFilter{BloodType: models.ABPos, Search: "thane", Limit: DefaultLimit}, f)
}

func TestBuildElasticQuery(t *testing.T) {
	src, err := buildElasticQuery(models.DonorFilter{BloodType: models.OPos, Search: "Mum*bai"}).Source()
	require.NoError(t, err)
	b, err := json.Marshal(src)
	require.NoError(t, err)
	body := string(b)
	assert.Contains(t, body, `"bloodType":"O+"`)
	assert.Contains(t, body, `cityLower`)
	assert.Contains(t, body, `nameLower`)
	assert.Contains(t, body, `*mum\\*bai*`)
	assert.Contains(t, body, `"minimum_should_match"`)

	src, err = buildElasticQuery(models.DonorFilter{}).Source()
	require.NoError(t, err)
	b, err = json.Marshal(src)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{}}`, string(b))
}

func TestElasticDocRoundTrip(t *testing.T) {
	d := SeedDonors(seedBase)[2]
	d.ID = "abc"
	b, err := json.Marshal(toElasticDoc(d))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"cityLower":"thane"`)
	assert.Contains(t, string(b), `"location":{"lat":19.2183,"lon":72.9781}`)

	back, err := fromSource(b)
	require.NoError(t, err)
	assert.Equal(t, d.Name, back.Name)
	assert.Equal(t, *d.Lat, *back.Lat)
	assert.True(t, d.CreatedAt.Equal(back.CreatedAt))
}
