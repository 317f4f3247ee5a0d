// Package storage persists the configuration lists as
// durable: per-mount Calibration and calibration.Details, and named
// TuningConfig profiles. It wraps database/sql over modernc.org/sqlite
// and applies its schema with golang-migrate, following the same
// split the teacher uses between a thin DB wrapper (db/db.go) and a
// golang-migrate-driven schema (internal/db/migrate.go) — collapsed
// here into one package since the autoguider's schema is small enough
// not to need the teacher's separate admin-routes layer.
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/lodestar-guide/autoguide/internal/calibration"
	"github.com/lodestar-guide/autoguide/internal/config"
	"github.com/lodestar-guide/autoguide/internal/geom"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sqlite connection holding the autoguider's persisted
// state. The zero value is not usable; construct with Open.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// brings its schema up to the latest migration.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", path, err)
	}

	db := &DB{conn}
	if err := db.migrateUp(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: migrate up: %w", err)
	}
	return nil
}

// newMigrate builds a migrate.Migrate bound to this connection and the
// embedded migration files. The returned instance must not be closed:
// the sqlite driver's Close would close db's underlying connection,
// which DB owns.
func (db *DB) newMigrate() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("storage: iofs source: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("storage: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("storage: new migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[storage] "+format, v...) }
func (l *migrateLogger) Verbose() bool { return false }

// SaveCalibration upserts the calibration for mountName.
func (db *DB) SaveCalibration(mountName string, c geom.Calibration, unixNow int64) error {
	_, err := db.Exec(`
		INSERT INTO calibration (
			mount_name, x_angle, y_angle, x_rate, y_rate,
			declination, declination_set, pier_side, ra_parity, dec_parity,
			rotator_angle, rotator_set, binning, updated_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mount_name) DO UPDATE SET
			x_angle=excluded.x_angle, y_angle=excluded.y_angle,
			x_rate=excluded.x_rate, y_rate=excluded.y_rate,
			declination=excluded.declination, declination_set=excluded.declination_set,
			pier_side=excluded.pier_side, ra_parity=excluded.ra_parity, dec_parity=excluded.dec_parity,
			rotator_angle=excluded.rotator_angle, rotator_set=excluded.rotator_set,
			binning=excluded.binning, updated_unix=excluded.updated_unix
	`, mountName, c.XAngle, c.YAngle, c.XRate, c.YRate,
		c.Declination, boolToInt(c.DeclinationSet), int(c.PierSide), int(c.RAParity), int(c.DecParity),
		c.RotatorAngle, boolToInt(c.RotatorSet), c.Binning, unixNow)
	if err != nil {
		return fmt.Errorf("storage: save calibration for %s: %w", mountName, err)
	}
	return nil
}

// LoadCalibration returns the calibration last saved for mountName. The
// second return value is false if none has been saved.
func (db *DB) LoadCalibration(mountName string) (geom.Calibration, bool, error) {
	var c geom.Calibration
	var declSet, rotSet, pier, ra, dec int
	row := db.QueryRow(`
		SELECT x_angle, y_angle, x_rate, y_rate, declination, declination_set,
		 pier_side, ra_parity, dec_parity, rotator_angle, rotator_set, binning
		FROM calibration WHERE mount_name = ?
	`, mountName)
	err := row.Scan(&c.XAngle, &c.YAngle, &c.XRate, &c.YRate, &c.Declination, &declSet,
		&pier, &ra, &dec, &c.RotatorAngle, &rotSet, &c.Binning)
	if errors.Is(err, sql.ErrNoRows) {
		return geom.Calibration{}, false, nil
	}
	if err != nil {
		return geom.Calibration{}, false, fmt.Errorf("storage: load calibration for %s: %w", mountName, err)
	}
	c.DeclinationSet = declSet != 0
	c.RotatorSet = rotSet != 0
	c.PierSide = geom.PierSide(pier)
	c.RAParity = geom.GuideParity(ra)
	c.DecParity = geom.GuideParity(dec)
	c.Valid = true
	return c, true, nil
}

// SaveCalibrationDetails upserts the calibration diagnostics for
// mountName.
func (db *DB) SaveCalibrationDetails(mountName string, d calibration.Details, unixNow int64) error {
	_, err := db.Exec(`
		INSERT INTO calibration_details (
			mount_name, focal_length_mm, image_scale, ra_steps, dec_steps,
			ortho_error_deg, last_issue, orig_binning, backlash_ms, updated_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mount_name) DO UPDATE SET
			focal_length_mm=excluded.focal_length_mm, image_scale=excluded.image_scale,
			ra_steps=excluded.ra_steps, dec_steps=excluded.dec_steps,
			ortho_error_deg=excluded.ortho_error_deg, last_issue=excluded.last_issue,
			orig_binning=excluded.orig_binning, backlash_ms=excluded.backlash_ms,
			updated_unix=excluded.updated_unix
	`, mountName, d.FocalLengthMM, d.ImageScale, d.RASteps, d.DecSteps,
		d.OrthoErrorDeg, d.LastIssue, d.OrigBinning, d.BacklashMs, unixNow)
	if err != nil {
		return fmt.Errorf("storage: save calibration details for %s: %w", mountName, err)
	}
	return nil
}

// LoadCalibrationDetails returns the calibration diagnostics last saved
// for mountName. The second return value is false if none has been
// saved.
func (db *DB) LoadCalibrationDetails(mountName string) (calibration.Details, bool, error) {
	var d calibration.Details
	row := db.QueryRow(`
		SELECT focal_length_mm, image_scale, ra_steps, dec_steps,
		 ortho_error_deg, last_issue, orig_binning, backlash_ms
		FROM calibration_details WHERE mount_name = ?
	`, mountName)
	err := row.Scan(&d.FocalLengthMM, &d.ImageScale, &d.RASteps, &d.DecSteps,
		&d.OrthoErrorDeg, &d.LastIssue, &d.OrigBinning, &d.BacklashMs)
	if errors.Is(err, sql.ErrNoRows) {
		return calibration.Details{}, false, nil
	}
	if err != nil {
		return calibration.Details{}, false, fmt.Errorf("storage: load calibration details for %s: %w", mountName, err)
	}
	return d, true, nil
}

// SaveTuningConfig stores cfg as the named profile's JSON tuning
// overrides, for later retrieval with LoadTuningConfig.
func (db *DB) SaveTuningConfig(profile string, cfg *config.TuningConfig, unixNow int64) error {
	blob, err := config.MarshalTuningConfig(cfg)
	if err != nil {
		return fmt.Errorf("storage: marshal tuning config %s: %w", profile, err)
	}
	_, err = db.Exec(`
		INSERT INTO tuning_config (profile, config_json, updated_unix) VALUES (?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET config_json=excluded.config_json, updated_unix=excluded.updated_unix
	`, profile, blob, unixNow)
	if err != nil {
		return fmt.Errorf("storage: save tuning config %s: %w", profile, err)
	}
	return nil
}

// LoadTuningConfig retrieves the named profile's tuning overrides. The
// second return value is false if the profile has never been saved.
func (db *DB) LoadTuningConfig(profile string) (*config.TuningConfig, bool, error) {
	var blob string
	err := db.QueryRow(`SELECT config_json FROM tuning_config WHERE profile = ?`, profile).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: load tuning config %s: %w", profile, err)
	}
	cfg, err := config.UnmarshalTuningConfig([]byte(blob))
	if err != nil {
		return nil, false, fmt.Errorf("storage: unmarshal tuning config %s: %w", profile, err)
	}
	return cfg, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
