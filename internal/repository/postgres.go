// Package repository содержит реализации хранилища данных: PostgreSQL и in-memory.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ChangesChannel задаёт канал NOTIFY, в который триггеры публикуют идентификатор фотографа.
const ChangesChannel = "photographer_changes"

const (
	photographerColumns = `id, code, display_name, email, phone_number, order_counter,
		account_name, account_number, ifsc, password_hash, created_at`
	orderColumns = `id, order_id, photographer_id, photographer_code, photographer_name,
		buyer_name, buyer_phone, buyer_address, buyer_pincode, model_id, model_name,
		remarks, photo_urls, status, admin_comments, created_at, updated_at`
	adjustmentColumns = `id, photographer_id, amount, remarks, admin_id, admin_email, created_at`
	redeemColumns     = `id, photographer_id, amount, status, amount_paid, remarks, admin_id, requested_at, processed_at`
	modelColumns      = `id, name, description, image_url, created_at`
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// classify переводит ошибки PostgreSQL в категории apperr.
// Конфликты сериализации, дедлоки и обрывы соединения считаются временными.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return fmt.Errorf("%w: %w", apperr.ErrConflict, err)
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, pgErr.ConstraintName)
		case pgerrcode.CheckViolation:
			return apperr.Invalid(pgErr.ColumnName, fmt.Sprintf("violates constraint %s", pgErr.ConstraintName))
		}
	}

	if isConnectionError(err) {
		return fmt.Errorf("%w: %w", apperr.ErrConflict, err)
	}

	return err
}

// isConnectionError распознаёт сетевые сбои и ошибки, после которых pgx гарантирует, что запрос не дошёл до сервера.
func isConnectionError(err error) bool {
	var opErr *net.OpError
	return pgconn.SafeToRetry(err) || errors.As(err, &opErr)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// lockPhotographer блокирует строку фотографа до конца транзакции.
// Все записи, влияющие на баланс, проходят через эту блокировку и поэтому сериализуются.
func lockPhotographer(ctx context.Context, tx pgx.Tx, id string) error {
	var dummy int
	err := tx.QueryRow(ctx, `SELECT 1 FROM photographers WHERE id = $1 FOR UPDATE`, id).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("photographer", id)
		}
		return classify(fmt.Errorf("lock photographer for update: %w", err))
	}
	return nil
}

// ListenChanges подписывается на канал photographer_changes и вызывает fn для каждого уведомления.
// Блокируется до отмены ctx или ошибки соединения.
func (r *PostgresRepository) ListenChanges(ctx context.Context, fn func(photographerID string)) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangesChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer func() {
		// Соединение возвращается в пул, подписку нужно снять.
		unlistenCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = conn.Exec(unlistenCtx, "UNLISTEN "+ChangesChannel)
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		fn(n.Payload)
	}
}

// CreatePhotographer создаёт фотографа.
func (r *PostgresRepository) CreatePhotographer(ctx context.Context, p *model.Photographer) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO photographers (id, code, display_name, email, phone_number,
			account_name, account_number, ifsc, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		p.ID, p.Code, p.DisplayName, p.Email, p.PhoneNumber,
		p.BankDetails.AccountName, p.BankDetails.AccountNumber, p.BankDetails.IFSC, p.PasswordHash,
	).Scan(&p.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("create photographer: %w", err))
	}
	return nil
}

func scanPhotographer(row scanner) (*model.Photographer, error) {
	var p model.Photographer
	err := row.Scan(&p.ID, &p.Code, &p.DisplayName, &p.Email, &p.PhoneNumber, &p.OrderCounter,
		&p.BankDetails.AccountName, &p.BankDetails.AccountNumber, &p.BankDetails.IFSC,
		&p.PasswordHash, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getPhotographer(ctx context.Context, q querier, id string) (*model.Photographer, error) {
	p, err := scanPhotographer(q.QueryRow(ctx,
		`SELECT `+photographerColumns+` FROM photographers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("photographer", id)
		}
		return nil, fmt.Errorf("get photographer: %w", err)
	}
	return p, nil
}

// GetPhotographer возвращает фотографа по идентификатору.
func (r *PostgresRepository) GetPhotographer(ctx context.Context, id string) (*model.Photographer, error) {
	return getPhotographer(ctx, r.pool, id)
}

// GetPhotographerByEmail возвращает фотографа по email.
func (r *PostgresRepository) GetPhotographerByEmail(ctx context.Context, email string) (*model.Photographer, error) {
	p, err := scanPhotographer(r.pool.QueryRow(ctx,
		`SELECT `+photographerColumns+` FROM photographers WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("photographer", email)
		}
		return nil, fmt.Errorf("get photographer by email: %w", err)
	}
	return p, nil
}

// ListPhotographers возвращает всех фотографов, новые первыми.
func (r *PostgresRepository) ListPhotographers(ctx context.Context) ([]model.Photographer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+photographerColumns+` FROM photographers ORDER BY created_at DESC, code DESC`)
	if err != nil {
		return nil, fmt.Errorf("select photographers: %w", err)
	}
	defer rows.Close()

	var res []model.Photographer
	for rows.Next() {
		p, err := scanPhotographer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photographer: %w", err)
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdateBankDetails заменяет банковские реквизиты фотографа.
func (r *PostgresRepository) UpdateBankDetails(ctx context.Context, photographerID string, details model.BankDetails) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE photographers SET account_name = $2, account_number = $3, ifsc = $4 WHERE id = $1`,
		photographerID, details.AccountName, details.AccountNumber, details.IFSC,
	)
	if err != nil {
		return classify(fmt.Errorf("update bank details: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("photographer", photographerID)
	}
	return nil
}

// NextPhotographerSeq атомарно увеличивает глобальный счётчик фотографов.
func (r *PostgresRepository) NextPhotographerSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = 'photographer' RETURNING value`,
	).Scan(&seq)
	if err != nil {
		return 0, classify(fmt.Errorf("increment photographer counter: %w", err))
	}
	return seq, nil
}

// NextOrderSeq атомарно увеличивает счётчик заказов фотографа одним UPDATE ... RETURNING.
func (r *PostgresRepository) NextOrderSeq(ctx context.Context, photographerID string) (string, int64, error) {
	var (
		code string
		seq  int64
	)
	err := r.pool.QueryRow(ctx,
		`UPDATE photographers SET order_counter = order_counter + 1 WHERE id = $1 RETURNING code, order_counter`,
		photographerID,
	).Scan(&code, &seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, apperr.NotFound("photographer", photographerID)
		}
		return "", 0, classify(fmt.Errorf("increment order counter: %w", err))
	}
	return code, seq, nil
}

// CreateOrder сохраняет заказ.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	photos := o.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.OrderID, o.PhotographerID, o.PhotographerCode, o.PhotographerName,
		o.Buyer.Name, o.Buyer.Phone, o.Buyer.Address, o.Buyer.Pincode, o.ModelID, o.ModelName,
		o.Remarks, photos, string(o.Status), o.AdminComments, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.NotFound("photographer", o.PhotographerID)
		}
		return classify(fmt.Errorf("insert order: %w", err))
	}
	return nil
}

func scanOrder(row scanner) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := row.Scan(&o.ID, &o.OrderID, &o.PhotographerID, &o.PhotographerCode, &o.PhotographerName,
		&o.Buyer.Name, &o.Buyer.Phone, &o.Buyer.Address, &o.Buyer.Pincode, &o.ModelID, &o.ModelName,
		&o.Remarks, &o.PhotoURLs, &status, &o.AdminComments, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

func queryOrders(ctx context.Context, q querier, sql string, args ...any) ([]model.Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrdersByPhotographer возвращает заказы фотографа, новые первыми.
func (r *PostgresRepository) ListOrdersByPhotographer(ctx context.Context, photographerID string) ([]model.Order, error) {
	return queryOrders(ctx, r.pool,
		`SELECT `+orderColumns+` FROM orders WHERE photographer_id = $1 ORDER BY created_at DESC, order_id DESC`,
		photographerID)
}

// ListOrders возвращает заказы с указанным статусом; пустой статус означает все заказы.
func (r *PostgresRepository) ListOrders(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	if status == "" {
		return queryOrders(ctx, r.pool,
			`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, order_id DESC`)
	}
	return queryOrders(ctx, r.pool,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC, order_id DESC`,
		string(status))
}

// UpdateOrder блокирует фотографа и заказ, применяет fn и сохраняет изменяемые поля заказа.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, id string, fn func(*model.Order) error) (*model.Order, error) {
	var updated *model.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var photographerID string
		err := tx.QueryRow(ctx, `SELECT photographer_id FROM orders WHERE id = $1`, id).Scan(&photographerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("order", id)
			}
			return classify(fmt.Errorf("select order owner: %w", err))
		}

		if err := lockPhotographer(ctx, tx, photographerID); err != nil {
			return err
		}

		o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return classify(fmt.Errorf("lock order: %w", err))
		}

		if err := fn(o); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2, admin_comments = $3, updated_at = $4 WHERE id = $1`,
			id, string(o.Status), o.AdminComments, o.UpdatedAt,
		)
		if err != nil {
			return classify(fmt.Errorf("update order: %w", err))
		}

		updated = o
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return updated, nil
}

// CreateAdjustment сохраняет ручную корректировку под блокировкой строки фотографа.
func (r *PostgresRepository) CreateAdjustment(ctx context.Context, a *model.ManualAdjustment) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockPhotographer(ctx, tx, a.PhotographerID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO manual_adjustments (`+adjustmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, a.PhotographerID, toNumeric(a.Amount), a.Remarks, a.AdminID, a.AdminEmail, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert adjustment: %w", err)
		}
		return nil
	})
	return classify(err)
}

func listAdjustments(ctx context.Context, q querier, photographerID string) ([]model.ManualAdjustment, error) {
	rows, err := q.Query(ctx,
		`SELECT `+adjustmentColumns+` FROM manual_adjustments WHERE photographer_id = $1 ORDER BY seq`,
		photographerID)
	if err != nil {
		return nil, fmt.Errorf("select adjustments: %w", err)
	}
	defer rows.Close()

	var res []model.ManualAdjustment
	for rows.Next() {
		var (
			a      model.ManualAdjustment
			amount pgtype.Numeric
		)
		if err := rows.Scan(&a.ID, &a.PhotographerID, &amount, &a.Remarks, &a.AdminID, &a.AdminEmail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		a.Amount = fromNumeric(amount)
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListAdjustments возвращает корректировки фотографа в порядке создания.
func (r *PostgresRepository) ListAdjustments(ctx context.Context, photographerID string) ([]model.ManualAdjustment, error) {
	return listAdjustments(ctx, r.pool, photographerID)
}

func scanRedeem(row scanner) (*model.RedeemRequest, error) {
	var (
		q            model.RedeemRequest
		status       string
		amount, paid pgtype.Numeric
	)
	err := row.Scan(&q.ID, &q.PhotographerID, &amount, &status, &paid, &q.Remarks, &q.AdminID, &q.RequestedAt, &q.ProcessedAt)
	if err != nil {
		return nil, err
	}
	q.Status = model.RedeemStatus(status)
	q.Amount = fromNumeric(amount)
	q.AmountPaid = fromNumeric(paid)
	return &q, nil
}

func queryRedeems(ctx context.Context, q querier, sql string, args ...any) ([]model.RedeemRequest, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select redeem requests: %w", err)
	}
	defer rows.Close()

	var res []model.RedeemRequest
	for rows.Next() {
		req, err := scanRedeem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redeem request: %w", err)
		}
		res = append(res, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func loadSnapshot(ctx context.Context, q querier, photographerID string) (*model.Snapshot, error) {
	p, err := getPhotographer(ctx, q, photographerID)
	if err != nil {
		return nil, err
	}
	orders, err := queryOrders(ctx, q,
		`SELECT `+orderColumns+` FROM orders WHERE photographer_id = $1 ORDER BY created_at DESC, order_id DESC`,
		photographerID)
	if err != nil {
		return nil, err
	}
	adjustments, err := listAdjustments(ctx, q, photographerID)
	if err != nil {
		return nil, err
	}
	redeems, err := queryRedeems(ctx, q,
		`SELECT `+redeemColumns+` FROM redeem_requests WHERE photographer_id = $1 ORDER BY requested_at DESC, id`,
		photographerID)
	if err != nil {
		return nil, err
	}
	return &model.Snapshot{Photographer: *p, Orders: orders, Adjustments: adjustments, Redeems: redeems}, nil
}

// LoadSnapshot читает все данные фотографа в одной транзакции REPEATABLE READ.
func (r *PostgresRepository) LoadSnapshot(ctx context.Context, photographerID string) (*model.Snapshot, error) {
	var snap *model.Snapshot
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		snap, err = loadSnapshot(ctx, tx, photographerID)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return snap, nil
}

// CreateRedeemRequest блокирует строку фотографа, перечитывает его данные, строит заявку через fn и сохраняет её.
// Проверка баланса и вставка выполняются в одной транзакции, поэтому параллельные заявки не превышают баланс.
func (r *PostgresRepository) CreateRedeemRequest(ctx context.Context, photographerID string, fn func(*model.Snapshot) (*model.RedeemRequest, error)) (*model.RedeemRequest, error) {
	var created *model.RedeemRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockPhotographer(ctx, tx, photographerID); err != nil {
			return err
		}

		snap, err := loadSnapshot(ctx, tx, photographerID)
		if err != nil {
			return err
		}

		req, err := fn(snap)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO redeem_requests (`+redeemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			req.ID, req.PhotographerID, toNumeric(req.Amount), string(req.Status), toNumeric(req.AmountPaid),
			req.Remarks, req.AdminID, req.RequestedAt, req.ProcessedAt,
		)
		if err != nil {
			return fmt.Errorf("insert redeem request: %w", err)
		}

		created = req
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return created, nil
}

// ResolveRedeemRequest блокирует фотографа и заявку, применяет fn и сохраняет результат.
func (r *PostgresRepository) ResolveRedeemRequest(ctx context.Context, id string, fn func(*model.RedeemRequest) error) (*model.RedeemRequest, error) {
	var resolved *model.RedeemRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var photographerID string
		err := tx.QueryRow(ctx, `SELECT photographer_id FROM redeem_requests WHERE id = $1`, id).Scan(&photographerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("redeem request", id)
			}
			return fmt.Errorf("select redeem owner: %w", err)
		}

		if err := lockPhotographer(ctx, tx, photographerID); err != nil {
			return err
		}

		req, err := scanRedeem(tx.QueryRow(ctx, `SELECT `+redeemColumns+` FROM redeem_requests WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return fmt.Errorf("lock redeem request: %w", err)
		}

		if err := fn(req); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE redeem_requests
			 SET status = $2, amount_paid = $3, remarks = $4, admin_id = $5, processed_at = $6
			 WHERE id = $1`,
			id, string(req.Status), toNumeric(req.AmountPaid), req.Remarks, req.AdminID, req.ProcessedAt,
		)
		if err != nil {
			return fmt.Errorf("update redeem request: %w", err)
		}

		resolved = req
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return resolved, nil
}

// GetRedeemRequest возвращает заявку по идентификатору.
func (r *PostgresRepository) GetRedeemRequest(ctx context.Context, id string) (*model.RedeemRequest, error) {
	req, err := scanRedeem(r.pool.QueryRow(ctx, `SELECT `+redeemColumns+` FROM redeem_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("redeem request", id)
		}
		return nil, fmt.Errorf("get redeem request: %w", err)
	}
	return req, nil
}

// ListRedeemRequests возвращает заявки фотографа, новые первыми.
func (r *PostgresRepository) ListRedeemRequests(ctx context.Context, photographerID string) ([]model.RedeemRequest, error) {
	return queryRedeems(ctx, r.pool,
		`SELECT `+redeemColumns+` FROM redeem_requests WHERE photographer_id = $1 ORDER BY requested_at DESC, id`,
		photographerID)
}

// ListRedeemRequestsByStatus возвращает заявки с указанным статусом; пустой статус означает все.
func (r *PostgresRepository) ListRedeemRequestsByStatus(ctx context.Context, status model.RedeemStatus) ([]model.RedeemRequest, error) {
	if status == "" {
		return queryRedeems(ctx, r.pool,
			`SELECT `+redeemColumns+` FROM redeem_requests ORDER BY requested_at DESC, id`)
	}
	return queryRedeems(ctx, r.pool,
		`SELECT `+redeemColumns+` FROM redeem_requests WHERE status = $1 ORDER BY requested_at DESC, id`,
		string(status))
}

// CreateModel сохраняет модель каталога.
func (r *PostgresRepository) CreateModel(ctx context.Context, m *model.CatalogModel) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO catalog_models (`+modelColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Name, m.Description, m.ImageURL, m.CreatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert model: %w", err))
	}
	return nil
}

func scanModel(row scanner) (*model.CatalogModel, error) {
	var m model.CatalogModel
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.ImageURL, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetModel возвращает модель каталога.
func (r *PostgresRepository) GetModel(ctx context.Context, id string) (*model.CatalogModel, error) {
	m, err := scanModel(r.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM catalog_models WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("model", id)
		}
		return nil, fmt.Errorf("get model: %w", err)
	}
	return m, nil
}

// ListModels возвращает каталог, отсортированный по имени.
func (r *PostgresRepository) ListModels(ctx context.Context) ([]model.CatalogModel, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+modelColumns+` FROM catalog_models ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("select models: %w", err)
	}
	defer rows.Close()

	var res []model.CatalogModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		res = append(res, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// DeleteModel удаляет модель каталога.
func (r *PostgresRepository) DeleteModel(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM catalog_models WHERE id = $1`, id)
	if err != nil {
		return classify(fmt.Errorf("delete model: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("model", id)
	}
	return nil
}

// RecordOrphanUploads запоминает объекты, которые не удалось удалить при откате.
func (r *PostgresRepository) RecordOrphanUploads(ctx context.Context, keys []string, reason string) error {
	batch := &pgx.Batch{}
	for _, k := range keys {
		batch.Queue(`INSERT INTO orphan_uploads (key, reason) VALUES ($1, $2)`, k, reason)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert orphan uploads: %w", err)
	}
	return nil
}

// ListOrphanUploads возвращает до limit записей, старые первыми.
func (r *PostgresRepository) ListOrphanUploads(ctx context.Context, limit int) ([]model.OrphanUpload, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, key, reason, attempts, created_at FROM orphan_uploads ORDER BY id LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("select orphan uploads: %w", err)
	}
	defer rows.Close()

	var res []model.OrphanUpload
	for rows.Next() {
		var o model.OrphanUpload
		if err := rows.Scan(&o.ID, &o.Key, &o.Reason, &o.Attempts, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan orphan upload: %w", err)
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// DeleteOrphanUpload удаляет запись после успешной очистки.
func (r *PostgresRepository) DeleteOrphanUpload(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM orphan_uploads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete orphan upload: %w", err)
	}
	return nil
}

// MarkOrphanAttempt увеличивает счётчик неудачных попыток удаления.
func (r *PostgresRepository) MarkOrphanAttempt(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `UPDATE orphan_uploads SET attempts = attempts + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark orphan attempt: %w", err)
	}
	return nil
}
