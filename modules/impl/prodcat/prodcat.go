package prodcat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/bobg/sqlutil"
	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"           // register the postgres driver for sql.Open
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver for sql.Open

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("prodcat")

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Schema is the subset of the MC production database the catalog reads.
const Schema = `
CREATE TABLE IF NOT EXISTS production (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  storage_dir TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS job (
  id INTEGER PRIMARY KEY,
  production_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file (
  id INTEGER PRIMARY KEY,
  job_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  size BIGINT NOT NULL,
  adler32 TEXT
);
`

const (
	qCount      = `SELECT COUNT(id) FROM production WHERE name = $1`
	qStorageDir = `SELECT storage_dir FROM production WHERE name = $1`
	qFiles      = `
SELECT f.name, f.size, f.adler32
FROM file f
  INNER JOIN job j ON j.id = f.job_id
  INNER JOIN production p ON p.id = j.production_id
WHERE p.name = $1`
)

var _ core.ProductionCatalog = (*Catalog)(nil)

// Catalog answers production queries from the MC production database.
type Catalog struct {
	db     *sql.DB
	driver string
}

// Open prepares the database described by cfg. No connection is made before the first query.
func Open(cfg modules.CatalogConfig) (*Catalog, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMySQL
	}

	dsn := cfg.DSN
	if dsn == "" {
		if driver != DriverMySQL {
			return nil, fmt.Errorf("catalog driver %s requires a dsn", driver)
		}

		dsn = MySQLDSNFromEnv()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", driver, err)
	}

	log.Debugw("catalog opened", "driver", driver)
	return New(db, driver), nil
}

// New wraps an open database.
func New(db *sql.DB, driver string) *Catalog {
	return &Catalog{db: db, driver: driver}
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// MySQLDSNFromEnv builds the DSN from the PADME_MCDB_* environment variables.
func MySQLDSNFromEnv() string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", getenv("PADME_MCDB_HOST", "percona.lnf.infn.it"), getenv("PADME_MCDB_PORT", "3306"))
	cfg.User = getenv("PADME_MCDB_USER", "padmeMCDB")
	cfg.Passwd = getenv("PADME_MCDB_PASSWD", "unknown")
	cfg.DBName = getenv("PADME_MCDB_NAME", "PadmeMCDB")
	return cfg.FormatDSN()
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind turns $N placeholders into the form expected by the driver.
func (c *Catalog) rebind(q string) string {
	if c.driver == DriverMySQL {
		return placeholder.ReplaceAllString(q, "?")
	}

	return q
}

func (c *Catalog) IsKnown(ctx context.Context, prod string) (bool, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, c.rebind(qCount), prod).Scan(&n); err != nil {
		return false, fmt.Errorf("count production %s: %w", prod, err)
	}

	return n > 0, nil
}

func (c *Catalog) StorageDir(ctx context.Context, prod string) (string, error) {
	var dir string
	err := c.db.QueryRowContext(ctx, c.rebind(qStorageDir), prod).Scan(&dir)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%q: %w", prod, core.ErrProductionNotFound)
	}

	if err != nil {
		return "", fmt.Errorf("storage dir of %s: %w", prod, err)
	}

	return dir, nil
}

func (c *Catalog) ExpectedFiles(ctx context.Context, prod string) ([]string, error) {
	listing, err := c.ExpectedAttributes(ctx, prod)
	if err != nil {
		return nil, err
	}

	return listing.Names(), nil
}

func (c *Catalog) ExpectedAttributes(ctx context.Context, prod string) (core.Listing, error) {
	listing := core.Listing{}
	err := sqlutil.ForQueryRows(ctx, c.db, c.rebind(qFiles), prod, func(name string, size int64, sum sql.NullString) {
		listing[name] = core.FileAttributes{
			Size:     size,
			Checksum: core.NormalizeChecksum(sum.String),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("files of %s: %w", prod, err)
	}

	return listing, nil
}
