package zipimport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"loadscout-backend/lib/testutil"
	"loadscout-backend/services/store"

	"github.com/stretchr/testify/require"
)

const fixtureCsv = `"zip","lat","lng","city","state_id","state_name","zcta","parent_zcta","population","density","county_fips","county_name"
"75201","32.78791","-96.79921","Dallas","TX","Texas","TRUE","","12345","4000.1","48113","Dallas"
"75202","32.77939","-96.80525","Dallas","TX","Texas","TRUE","","900","1200.5","48113","Dallas"
"33101","25.77906","-80.19867","Miami","FL","Florida","TRUE","","0","0","12086","Miami-Dade"
"99999","not-a-number","-80.1","Nowhere","ZZ","Nowhere","TRUE","","0","0","00000","None"
`

func writeFixture(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "uszips.csv")
	require.NoError(t, os.WriteFile(path, []byte(fixtureCsv), 0o644))
	return path
}

func TestImport(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/zipimport")
	defer cleanup()

	count, err := Import(context.Background(), db, writeFixture(t))
	require.NoError(t, err)
	require.Equal(t, 3, count) // the broken-lat row is skipped

	var zc store.ZipCode
	require.NoError(t, db.Where("zip = ?", "33101").First(&zc).Error)
	require.Equal(t, "Miami", zc.City)
	require.Equal(t, "FL", zc.StateID)
	require.InDelta(t, 25.77906, zc.Lat, 1e-6)
}

func TestImportReplacesExisting(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/zipimport")
	defer cleanup()

	require.NoError(t, db.Create(&store.ZipCode{Zip: "00000", City: "Stale"}).Error)

	_, err := Import(context.Background(), db, writeFixture(t))
	require.NoError(t, err)

	var n int64
	require.NoError(t, db.Model(&store.ZipCode{}).Where("zip = ?", "00000").Count(&n).Error)
	require.Zero(t, n)
}

func TestImportMissingColumn(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/zipimport")
	defer cleanup()

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("zip,lat,lng,city\n75201,1,2,Dallas\n"), 0o644))

	_, err := Import(context.Background(), db, path)
	require.ErrorContains(t, err, "state_id")
}

func TestResolveGeoAfterImport(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/zipimport")
	defer cleanup()

	_, err := Import(context.Background(), db, writeFixture(t))
	require.NoError(t, err)

	byZip := store.Place{City: "Dallas", State: "TX", Zip: "75202"}
	store.ResolveGeo(db, &byZip)
	require.InDelta(t, 32.77939, byZip.Lat, 1e-6)

	// no zip falls back to city+state, preferring the most populous zip
	byCity := store.Place{City: "dallas", State: "TX"}
	store.ResolveGeo(db, &byCity)
	require.InDelta(t, 32.78791, byCity.Lat, 1e-6)

	unknown := store.Place{City: "Atlantis", State: "XX"}
	store.ResolveGeo(db, &unknown)
	require.False(t, unknown.HasGeo())
}
