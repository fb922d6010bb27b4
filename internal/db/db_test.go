package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/ads-proximity/pkg/config"
	"github.com/unklstewy/ads-proximity/pkg/proximity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := config.DatabaseConfig{
		Enabled: true,
		Driver:  "sqlite",
		Path:    filepath.Join(t.TempDir(), "proximity.db"),
	}

	db, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InitSchema(context.Background()))
	return db
}

func TestDataSource(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.DatabaseConfig
		wantDriver string
		wantErr    bool
	}{
		{
			name:       "Postgres default",
			cfg:        config.DatabaseConfig{Host: "localhost", Port: 5432, Username: "u", Password: "p", Database: "d", SSLMode: "disable"},
			wantDriver: "postgres",
		},
		{
			name:       "Sqlite",
			cfg:        config.DatabaseConfig{Driver: "sqlite", Path: "/tmp/x.db"},
			wantDriver: "sqlite",
		},
		{"Sqlite without path", config.DatabaseConfig{Driver: "sqlite"}, "", true},
		{"Unknown driver", config.DatabaseConfig{Driver: "oracle"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := dataSource(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
			assert.NotEmpty(t, dsn)
		})
	}

	_, dsn, _ := dataSource(tests[0].cfg)
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=d sslmode=disable", dsn)
}

func TestRebind(t *testing.T) {
	pg := &DB{config: config.DatabaseConfig{Driver: "postgres"}}
	lite := &DB{config: config.DatabaseConfig{Driver: "sqlite"}}

	q := "SELECT * FROM airports WHERE code = ? AND name = ?"
	assert.Equal(t, "SELECT * FROM airports WHERE code = $1 AND name = $2", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestInitSchemaIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InitSchema(context.Background()))

	version, dirty, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"airports": 0, "threshold_categories": 0}, stats)
	assert.NoError(t, HealthCheck(context.Background(), db))
}

func TestAirportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAirportRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, config.AirportConfig{Code: "sea", Name: "Seattle-Tacoma", Latitude: 47.450237, Longitude: -122.3088, Elevation: 131}))
	require.NoError(t, repo.Upsert(ctx, config.AirportConfig{Code: "BFI", Name: "Boeing Field", Latitude: 47.53, Longitude: -122.3019}))

	got, err := repo.Get(ctx, "SEA")
	require.NoError(t, err)
	assert.Equal(t, "SEA", got.Code)
	assert.Equal(t, 131.0, got.Elevation)

	// upsert replaces
	require.NoError(t, repo.Upsert(ctx, config.AirportConfig{Code: "SEA", Name: "SeaTac", Latitude: 47.45, Longitude: -122.31}))
	got, err = repo.Get(ctx, "sea")
	require.NoError(t, err)
	assert.Equal(t, "SeaTac", got.Name)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BFI", all[0].Code)

	require.NoError(t, repo.Delete(ctx, "BFI"))
	assert.ErrorIs(t, repo.Delete(ctx, "BFI"), ErrNotFound)

	_, err = repo.Get(ctx, "XXX")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, repo.Upsert(ctx, config.AirportConfig{Name: "no code"}))
}

func TestThresholdRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewThresholdRepository(openTestDB(t))

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	table := proximity.ThresholdTable{
		proximity.CategoryAirAir:       {Low: 300, Medium: 250, High: 200},
		proximity.CategoryAirGround:    {Low: 1100, Medium: 950, High: 800},
		proximity.CategoryGroundGround: {Low: 300, Medium: 200, High: 100},
	}
	require.NoError(t, repo.Save(ctx, table))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, table, loaded)

	bad := table.Clone()
	bad[proximity.CategoryAirAir] = proximity.Thresholds{Low: 1, Medium: 2, High: 3}
	err = repo.Save(ctx, bad)
	assert.True(t, errors.Is(err, proximity.ErrInvalidThresholdTable))

	// the rejected table did not replace the stored one
	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, table, loaded)
}

func TestLoadRejectsCorruptRows(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.ExecContext(ctx, `INSERT INTO proximity_thresholds (category, low_meters, medium_meters, high_meters) VALUES ('Air-Air', 3, 2, 1)`)
	require.NoError(t, err)

	_, err = NewThresholdRepository(db).Load(ctx)
	assert.ErrorIs(t, err, proximity.ErrInvalidThresholdTable)
}

func TestSeedAndApply(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cfg := config.DefaultConfig()
	require.NoError(t, db.Seed(ctx, cfg))

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(cfg.Airports), stats["airports"])
	assert.Equal(t, 3, stats["threshold_categories"])

	// stored values win over the file
	require.NoError(t, NewAirportRepository(db).Upsert(ctx, config.AirportConfig{Code: "PDX", Name: "Portland", Latitude: 45.5887, Longitude: -122.5975}))
	custom := proximity.DefaultThresholdTable()
	custom[proximity.CategoryGroundGround] = proximity.Thresholds{Low: 90, Medium: 60, High: 30}
	require.NoError(t, NewThresholdRepository(db).Save(ctx, custom))

	fresh := config.DefaultConfig()
	require.NoError(t, db.ApplyTo(ctx, fresh))
	_, ok := fresh.Airport("PDX")
	assert.True(t, ok)
	assert.Equal(t, 30.0, fresh.Thresholds[proximity.CategoryGroundGround].High)

	// seeding again leaves existing rows alone
	require.NoError(t, db.Seed(ctx, config.DefaultConfig()))
	loaded, err := NewThresholdRepository(db).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30.0, loaded[proximity.CategoryGroundGround].High)
}

func TestApplyToEmptyKeepsFile(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, openTestDB(t).ApplyTo(context.Background(), cfg))
	assert.Len(t, cfg.Airports, len(config.DefaultAirports()))
	assert.Equal(t, proximity.DefaultThresholdTable(), cfg.Thresholds)
}

func TestReconnectWithRetryGivesUp(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "missing", "dir", "x.db")}
	_, err := ReconnectWithRetry(context.Background(), cfg, 2, 0, nil)
	assert.Error(t, err)
}

func TestReconnectWithRetryConnects(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "ok.db")}
	db, err := ReconnectWithRetry(context.Background(), cfg, 3, 0, nil)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "sqlite", db.Driver())
}

func TestHealthCheckNil(t *testing.T) {
	assert.Error(t, HealthCheck(context.Background(), nil))
}
