// Package sqlconn implements fieldz.Connector on top of database/sql.
//
// A query value is one of:
//
//	"SELECT ..."                                   plain SQL
//	["SELECT ... WHERE id = ?", 7]                 SQL followed by arguments
//	{"sql": "SELECT ...", "args": [7]}             SQL with an argument array
//
// Row-returning statements yield an Array of Dicts, one per row, keys in
// column order. Other statements yield {"rowsAffected": n}.
package sqlconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zoobzio/metricz"
	"go.uber.org/zap"

	"github.com/zoobzio/fieldz"

	// Registers the "sqlite" driver used by the default configuration.
	_ "modernc.org/sqlite"
)

// Metric keys.
const (
	QueriesTotal  = metricz.Key("sqlconn.queries.total")
	FailuresTotal = metricz.Key("sqlconn.failures.total")
	RowsReturned  = metricz.Key("sqlconn.rows.returned")
)

// ErrMalformedQuery is the cause reported for query values of the wrong shape.
var ErrMalformedQuery = errors.New("malformed query value")

// Connector runs query values against a database.
type Connector struct {
	db      *sql.DB
	logger  *zap.Logger
	metrics *metricz.Registry
	timeout time.Duration
}

// New wraps an open database. timeout bounds each query when positive.
func New(db *sql.DB, logger *zap.Logger, timeout time.Duration) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		db:      db,
		logger:  logger,
		metrics: metricz.New(),
		timeout: timeout,
	}
}

// Open opens and pings the database described by cfg.
func Open(ctx context.Context, cfg fieldz.SQLConfig, logger *zap.Logger) (*Connector, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping %s: %w", cfg.Driver, err), db.Close())
	}
	return New(db, logger, cfg.QueryTimeout), nil
}

// NewApp builds a fieldz.App from a full configuration: the logger comes from
// the logging section and, when a DSN is set, a Connector from the sql
// section, wrapped in retry and circuit breaking as configured. Closing the
// App closes the database.
func NewApp(ctx context.Context, cfg fieldz.Config) (*fieldz.App, error) {
	logger, err := cfg.Logging.BuildLogger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	opts := []fieldz.AppOption{fieldz.WithLogger(logger)}
	if cfg.SQL.DSN != "" {
		conn, err := Open(ctx, cfg.SQL, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fieldz.WithConnector(Wrap(conn, cfg.SQL, logger)), fieldz.OnClose(conn.Close))
	}
	return fieldz.NewApp(opts...), nil
}

// Wrap layers the resilience settings of cfg around conn. The breaker sits
// outside the retries so one exhausted retry sequence counts as one failure.
func Wrap(conn fieldz.Connector, cfg fieldz.SQLConfig, logger *zap.Logger) fieldz.Connector {
	out := conn
	if cfg.RetryAttempts > 1 {
		out = fieldz.NewBackoff("sql-retry", out, cfg.RetryAttempts, cfg.RetryDelay).WithLogger(logger)
	}
	if cfg.BreakerThreshold > 0 {
		out = fieldz.NewCircuitBreaker("sql-breaker", out, cfg.BreakerThreshold, cfg.BreakerReset).WithLogger(logger)
	}
	return out
}

// Query implements fieldz.Connector.
func (c *Connector) Query(ctx context.Context, query fieldz.Value) (fieldz.Value, error) {
	c.metrics.Counter(QueriesTotal).Inc()

	stmt, args, err := parse(query)
	if err != nil {
		c.metrics.Counter(FailuresTotal).Inc()
		fe := fieldz.InternalServerError(nil, "sqlconn: %v", err)
		fe.Err = ErrMalformedQuery
		if errors.Is(err, fieldz.ErrUnsupported) {
			fe.Err = fmt.Errorf("%w: %w", ErrMalformedQuery, fieldz.ErrUnsupported)
		}
		return fieldz.Null(), fe
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var result fieldz.Value
	if returnsRows(stmt) {
		result, err = c.rows(ctx, stmt, args)
	} else {
		result, err = c.exec(ctx, stmt, args)
	}
	if err != nil {
		c.metrics.Counter(FailuresTotal).Inc()
		var fe *fieldz.Error
		if errors.As(err, &fe) {
			// The database answered; its result has no Value form.
			return fieldz.Null(), fe
		}
		c.logger.Warn("sql query failed", zap.String("sql", stmt), zap.Int("args", len(args)), zap.Error(err))
		return fieldz.Null(), fmt.Errorf("sqlconn: %w", err)
	}
	return result, nil
}

func (c *Connector) rows(ctx context.Context, stmt string, args []any) (fieldz.Value, error) {
	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fieldz.Null(), err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fieldz.Null(), err
	}
	var out []fieldz.Value
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fieldz.Null(), err
		}
		pairs := make([]fieldz.Pair, len(cols))
		for i, col := range cols {
			v, err := fromDriver(raw[i])
			if err != nil {
				fe := fieldz.InternalServerError(fieldz.Path(len(out), col), "sqlconn: column %q: %v", col, err)
				fe.Err = fieldz.ErrUnsupported
				return fieldz.Null(), fe
			}
			pairs[i] = fieldz.Pair{Key: col, Value: v}
		}
		out = append(out, fieldz.Map(pairs...))
	}
	if err := rows.Err(); err != nil {
		return fieldz.Null(), err
	}
	c.metrics.Gauge(RowsReturned).Set(float64(len(out)))
	return fieldz.Array(out...), nil
}

func (c *Connector) exec(ctx context.Context, stmt string, args []any) (fieldz.Value, error) {
	res, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fieldz.Null(), err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fieldz.Null(), err
	}
	return fieldz.Map(fieldz.Pair{Key: "rowsAffected", Value: fieldz.Int64(n)}), nil
}

// Metrics returns the connector's metrics registry.
func (c *Connector) Metrics() *metricz.Registry { return c.metrics }

// DB returns the underlying database.
func (c *Connector) DB() *sql.DB { return c.db }

// Close closes the database.
func (c *Connector) Close() error { return c.db.Close() }

func parse(q fieldz.Value) (string, []any, error) {
	switch q.Kind() {
	case fieldz.KindString:
		s, _ := q.AsString()
		return s, nil, nil
	case fieldz.KindArray, fieldz.KindTuple:
		elems, _ := q.AsArray()
		if len(elems) == 0 {
			return "", nil, errors.New("empty query array")
		}
		s, ok := elems[0].AsString()
		if !ok {
			return "", nil, fmt.Errorf("query array must start with sql, got %s", elems[0].Kind())
		}
		args, err := toDriverAll(elems[1:])
		return s, args, err
	case fieldz.KindDict:
		d, _ := q.AsDict()
		sv, _ := d.Get("sql")
		s, ok := sv.AsString()
		if !ok {
			return "", nil, fmt.Errorf("query dict needs a string sql entry, got %s", sv.Kind())
		}
		av, found := d.Get("args")
		if !found || av.IsNull() {
			return s, nil, nil
		}
		elems, ok := av.AsArray()
		if !ok {
			return "", nil, fmt.Errorf("query args must be an array, got %s", av.Kind())
		}
		args, err := toDriverAll(elems)
		return s, args, err
	default:
		return "", nil, fmt.Errorf("query must be string, array or dict, got %s", q.Kind())
	}
}

// returnsRows reports whether stmt produces a result set.
func returnsRows(stmt string) bool {
	s := strings.ToUpper(strings.TrimSpace(stmt))
	for _, p := range []string{"SELECT", "WITH", "PRAGMA", "VALUES", "EXPLAIN", "SHOW"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return strings.Contains(s, " RETURNING ")
}

func toDriverAll(vs []fieldz.Value) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		a, err := toDriver(v)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = a
	}
	return out, nil
}

func toDriver(v fieldz.Value) (any, error) {
	switch v.Kind() {
	case fieldz.KindNull:
		return nil, nil
	case fieldz.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case fieldz.KindInt32, fieldz.KindInt64:
		i, _ := v.AsInt()
		return i, nil
	case fieldz.KindFloat32, fieldz.KindFloat64:
		f, _ := v.AsFloat()
		return f, nil
	case fieldz.KindDecimal:
		// Decimals travel as text so no precision is lost.
		r, _ := v.AsDecimal()
		s, ok := decimalText(r)
		if !ok {
			return nil, fmt.Errorf("decimal %s has no finite decimal expansion: %w", r.RatString(), fieldz.ErrUnsupported)
		}
		return s, nil
	case fieldz.KindString:
		s, _ := v.AsString()
		return s, nil
	case fieldz.KindEnum:
		s, _ := v.AsEnum()
		return s, nil
	case fieldz.KindDate, fieldz.KindDateTime:
		t, _ := v.AsTime()
		return t, nil
	default:
		return nil, fmt.Errorf("%s cannot be bound as an argument: %w", v.Kind(), fieldz.ErrUnsupported)
	}
}

// decimalText renders r in plain decimal notation, or reports false when
// the expansion does not terminate (1/3).
func decimalText(r *big.Rat) (string, bool) {
	den := new(big.Int).Set(r.Denom())
	digits := 0
	for _, f := range []int64{2, 5} {
		factor := big.NewInt(f)
		n := 0
		for {
			q, m := new(big.Int).QuoRem(den, factor, new(big.Int))
			if m.Sign() != 0 {
				break
			}
			den = q
			n++
		}
		digits = max(digits, n)
	}
	if den.Cmp(big.NewInt(1)) != 0 {
		return "", false
	}
	return r.FloatString(digits), true
}

// fromDriver maps a scanned column. Text blobs become strings; binary data
// and driver types without a Value kind are refused.
func fromDriver(a any) (fieldz.Value, error) {
	switch x := a.(type) {
	case nil:
		return fieldz.Null(), nil
	case bool:
		return fieldz.Bool(x), nil
	case int64:
		return fieldz.Int64(x), nil
	case int32:
		return fieldz.Int32(x), nil
	case int:
		return fieldz.Int(x), nil
	case float64:
		return fieldz.Float64(x), nil
	case float32:
		return fieldz.Float32(x), nil
	case string:
		return fieldz.String(x), nil
	case []byte:
		if !utf8.Valid(x) {
			return fieldz.Null(), fmt.Errorf("binary data: %w", fieldz.ErrUnsupported)
		}
		return fieldz.String(string(x)), nil
	case time.Time:
		return fieldz.DateTime(x), nil
	case *big.Rat:
		return fieldz.Decimal(x), nil
	default:
		return fieldz.Null(), fmt.Errorf("driver type %T: %w", a, fieldz.ErrUnsupported)
	}
}
