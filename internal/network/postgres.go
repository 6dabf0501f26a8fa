package network

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"antns/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// appendRetries bounds retries when concurrent appends race for the same
// sequence number.
const appendRetries = 5

// Schema creates the tables backing the Postgres network.
const Schema = `
CREATE TABLE IF NOT EXISTS chunks (
	address BYTEA PRIMARY KEY,
	data    BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS register_entries (
	register TEXT   NOT NULL,
	seq      BIGINT NOT NULL,
	value    BYTEA  NOT NULL,
	PRIMARY KEY (register, seq)
);
`

// Postgres persists chunks and registers in PostgreSQL. Register order is the
// seq column; (register, seq) uniqueness makes each append atomic.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database. Call Migrate once before use.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the schema if it does not exist.
func (n *Postgres) Migrate(ctx context.Context) error {
	if _, err := n.db.ExecContext(ctx, Schema); err != nil {
		return classify("migrate network schema", err)
	}
	return nil
}

func (n *Postgres) PutChunk(ctx context.Context, data []byte) (ChunkAddress, error) {
	addr := AddressOf(data)
	_, err := n.db.ExecContext(ctx,
		`INSERT INTO chunks (address, data) VALUES ($1, $2) ON CONFLICT (address) DO NOTHING`,
		addr[:], data)
	if err != nil {
		return ChunkAddress{}, classify("put chunk", err)
	}
	return addr, nil
}

func (n *Postgres) GetChunk(ctx context.Context, addr ChunkAddress) ([]byte, error) {
	var data []byte
	err := n.db.QueryRowContext(ctx, `SELECT data FROM chunks WHERE address = $1`, addr[:]).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, classify("get chunk "+addr.String(), sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get chunk "+addr.String(), err)
	}
	return data, nil
}

func (n *Postgres) CreateRegister(ctx context.Context, key ed25519.PrivateKey, first ChunkAddress) (RegisterAddress, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", classify("create register", sentinel.ErrForbidden)
	}
	addr := RegisterAddressOf(key.Public().(ed25519.PublicKey))
	res, err := n.db.ExecContext(ctx,
		`INSERT INTO register_entries (register, seq, value) VALUES ($1, 0, $2) ON CONFLICT DO NOTHING`,
		addr.String(), first[:])
	if err != nil {
		return "", classify("create register "+addr.String(), err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return "", classify("create register "+addr.String(), sentinel.ErrConflict)
	}
	return addr, nil
}

func (n *Postgres) AppendRegister(ctx context.Context, key ed25519.PrivateKey, value ChunkAddress) error {
	if len(key) != ed25519.PrivateKeySize {
		return classify("append register", sentinel.ErrForbidden)
	}
	addr := RegisterAddressOf(key.Public().(ed25519.PublicKey))

	var err error
	for range appendRetries {
		var res sql.Result
		res, err = n.db.ExecContext(ctx, `
			INSERT INTO register_entries (register, seq, value)
			SELECT $1, MAX(seq) + 1, $2 FROM register_entries WHERE register = $1
			HAVING COUNT(*) > 0`,
			addr.String(), value[:])
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return classify("append register "+addr.String(), err)
		}
		if rows, rerr := res.RowsAffected(); rerr == nil && rows == 0 {
			return classify("append register "+addr.String(), sentinel.ErrNotFound)
		}
		return nil
	}
	return classify("append register "+addr.String(), errors.Join(sentinel.ErrConflict, err))
}

func (n *Postgres) RegisterHistory(addr RegisterAddress) HistoryIterator {
	return &postgresIterator{db: n.db, register: addr.String(), lastSeq: -1}
}

func (n *Postgres) RegisterHead(ctx context.Context, addr RegisterAddress) (ChunkAddress, error) {
	var raw []byte
	err := n.db.QueryRowContext(ctx,
		`SELECT value FROM register_entries WHERE register = $1 ORDER BY seq DESC LIMIT 1`,
		addr.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ChunkAddress{}, classify("register head "+addr.String(), sentinel.ErrNotFound)
	}
	if err != nil {
		return ChunkAddress{}, classify("register head "+addr.String(), err)
	}
	return entryFromBytes(raw)
}

// postgresIterator walks the register with a seq cursor, one row per call.
type postgresIterator struct {
	db       *sql.DB
	register string
	lastSeq  int64
}

func (it *postgresIterator) Next(ctx context.Context) (ChunkAddress, bool, error) {
	var (
		seq int64
		raw []byte
	)
	err := it.db.QueryRowContext(ctx,
		`SELECT seq, value FROM register_entries WHERE register = $1 AND seq > $2 ORDER BY seq LIMIT 1`,
		it.register, it.lastSeq).Scan(&seq, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ChunkAddress{}, false, nil
	}
	if err != nil {
		return ChunkAddress{}, false, classify("register history", err)
	}
	it.lastSeq = seq
	var addr ChunkAddress
	if len(raw) != len(addr) {
		return addr, true, fmt.Errorf("register entry %d: %w: %d bytes", seq, ErrMalformedEntry, len(raw))
	}
	copy(addr[:], raw)
	return addr, true, nil
}

func entryFromBytes(raw []byte) (ChunkAddress, error) {
	var addr ChunkAddress
	if len(raw) != len(addr) {
		return addr, classify("register entry", sentinel.ErrInvalidState)
	}
	copy(addr[:], raw)
	return addr, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
