package database

import (
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite" // pure Go sqlite driver
)

// Manager owns the database connections opened by a running script,
// keyed by the integer handles handed back to script code.
type Manager struct {
	mu    sync.Mutex
	next  int64
	conns map[int64]*conn
}

type conn struct {
	db         *sql.DB
	driver     string
	dsn        string
	opened     time.Time
	lastUsed   time.Time
	lastInsert int64
}

func NewManager() *Manager {
	return &Manager{conns: make(map[int64]*conn)}
}

// Open connects to a database and returns the script-visible handle.
func (m *Manager) Open(driver, dsn string) (int64, error) {
	var driverName string
	switch driver {
	case "sqlite", "sqlite3":
		driverName = "sqlite"
	default:
		return 0, errors.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return 0, errors.Wrap(err, "open failed")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return 0, errors.Wrap(err, "ping failed")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.conns[m.next] = &conn{
		db:       db,
		driver:   driver,
		dsn:      dsn,
		opened:   time.Now(),
		lastUsed: time.Now(),
	}
	return m.next, nil
}

// Exec runs a statement that returns no rows. It reports affected rows
// and the last insert id.
func (m *Manager) Exec(handle int64, query string, args ...interface{}) (affected, lastID int64, err error) {
	c, err := m.get(handle)
	if err != nil {
		return 0, 0, err
	}
	res, err := c.db.Exec(query, args...)
	if err != nil {
		return 0, 0, errors.Wrap(err, "exec failed")
	}
	affected, _ = res.RowsAffected()
	lastID, _ = res.LastInsertId()
	m.mu.Lock()
	c.lastInsert = lastID
	m.mu.Unlock()
	return affected, lastID, nil
}

// LastInsertID reports the id produced by the most recent Exec on the
// handle.
func (m *Manager) LastInsertID(handle int64) (int64, error) {
	c, err := m.get(handle)
	if err != nil {
		return 0, err
	}
	return c.lastInsert, nil
}

// Query runs a row-returning statement. Columns come back ordered so the
// caller can build insertion-ordered result maps.
func (m *Manager) Query(handle int64, query string, args ...interface{}) ([]string, [][]interface{}, error) {
	c, err := m.get(handle)
	if err != nil {
		return nil, nil, err
	}
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "query failed")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, errors.Wrap(err, "columns failed")
	}

	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, errors.Wrap(err, "scan failed")
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	return cols, out, errors.Wrap(rows.Err(), "row iteration failed")
}

// Close releases one handle.
func (m *Manager) Close(handle int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[handle]
	if !ok {
		return errors.Errorf("unknown database handle %d", handle)
	}
	delete(m.conns, handle)
	return c.db.Close()
}

// CloseAll releases every open handle; the CLI runs it on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, c := range m.conns {
		c.db.Close()
		delete(m.conns, h)
	}
}

func (m *Manager) get(handle int64) (*conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[handle]
	if !ok {
		return nil, errors.Errorf("unknown database handle %d", handle)
	}
	c.lastUsed = time.Now()
	return c, nil
}
