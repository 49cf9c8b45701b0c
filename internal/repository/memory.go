package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Используется в тестах и при запуске без DATABASE_URI.
// Все операции сериализуются одним мьютексом, что заменяет построчные блокировки PostgreSQL.
type MemoryRepository struct {
	mu sync.Mutex

	photographerSeq int64
	photographers   map[string]*model.Photographer
	emails          map[string]string

	orders      map[string]*model.Order
	adjustments []model.ManualAdjustment
	redeems     map[string]*model.RedeemRequest
	models      map[string]*model.CatalogModel

	orphans    map[int64]*model.OrphanUpload
	nextOrphan int64

	lmu          sync.Mutex
	listeners    map[int]func(string)
	nextListener int
}

// NewMemoryRepository создаёт пустое хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		photographers: make(map[string]*model.Photographer),
		emails:        make(map[string]string),
		orders:        make(map[string]*model.Order),
		redeems:       make(map[string]*model.RedeemRequest),
		models:        make(map[string]*model.CatalogModel),
		orphans:       make(map[int64]*model.OrphanUpload),
		listeners:     make(map[int]func(string)),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) notify(photographerID string) {
	r.lmu.Lock()
	fns := make([]func(string), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.lmu.Unlock()

	for _, fn := range fns {
		fn(photographerID)
	}
}

// ListenChanges вызывает fn после каждой записи, влияющей на заработок фотографа. Блокируется до отмены ctx.
func (r *MemoryRepository) ListenChanges(ctx context.Context, fn func(photographerID string)) error {
	r.lmu.Lock()
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn
	r.lmu.Unlock()

	<-ctx.Done()

	r.lmu.Lock()
	delete(r.listeners, id)
	r.lmu.Unlock()
	return nil
}

// CreatePhotographer сохраняет фотографа. Email и код должны быть уникальны.
func (r *MemoryRepository) CreatePhotographer(ctx context.Context, p *model.Photographer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.emails[p.Email]; ok {
		return fmt.Errorf("%w: email %s", apperr.ErrAlreadyExists, p.Email)
	}
	for _, existing := range r.photographers {
		if existing.Code == p.Code {
			return fmt.Errorf("%w: photographer id %s", apperr.ErrAlreadyExists, p.Code)
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	cp := *p
	r.photographers[p.ID] = &cp
	r.emails[p.Email] = p.ID
	return nil
}

// GetPhotographer возвращает фотографа по идентификатору.
func (r *MemoryRepository) GetPhotographer(ctx context.Context, id string) (*model.Photographer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.photographers[id]
	if !ok {
		return nil, apperr.NotFound("photographer", id)
	}
	cp := *p
	return &cp, nil
}

// GetPhotographerByEmail возвращает фотографа по email.
func (r *MemoryRepository) GetPhotographerByEmail(ctx context.Context, email string) (*model.Photographer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.emails[email]
	if !ok {
		return nil, apperr.NotFound("photographer", email)
	}
	cp := *r.photographers[id]
	return &cp, nil
}

// ListPhotographers возвращает всех фотографов, новые первыми.
func (r *MemoryRepository) ListPhotographers(ctx context.Context) ([]model.Photographer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Photographer, 0, len(r.photographers))
	for _, p := range r.photographers {
		res = append(res, *p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].Code > res[j].Code
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// UpdateBankDetails заменяет банковские реквизиты фотографа.
func (r *MemoryRepository) UpdateBankDetails(ctx context.Context, photographerID string, details model.BankDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.photographers[photographerID]
	if !ok {
		return apperr.NotFound("photographer", photographerID)
	}
	p.BankDetails = details
	return nil
}

// NextPhotographerSeq атомарно увеличивает глобальный счётчик фотографов.
func (r *MemoryRepository) NextPhotographerSeq(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.photographerSeq++
	return r.photographerSeq, nil
}

// NextOrderSeq атомарно увеличивает счётчик заказов фотографа.
func (r *MemoryRepository) NextOrderSeq(ctx context.Context, photographerID string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.photographers[photographerID]
	if !ok {
		return "", 0, apperr.NotFound("photographer", photographerID)
	}
	p.OrderCounter++
	return p.Code, p.OrderCounter, nil
}

// CreateOrder сохраняет заказ.
func (r *MemoryRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	r.mu.Lock()
	if _, ok := r.photographers[o.PhotographerID]; !ok {
		r.mu.Unlock()
		return apperr.NotFound("photographer", o.PhotographerID)
	}
	for _, existing := range r.orders {
		if existing.OrderID == o.OrderID {
			r.mu.Unlock()
			return fmt.Errorf("%w: order %s", apperr.ErrAlreadyExists, o.OrderID)
		}
	}
	r.orders[o.ID] = cloneOrder(o)
	r.mu.Unlock()

	r.notify(o.PhotographerID)
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *MemoryRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

// ListOrdersByPhotographer возвращает заказы фотографа, новые первыми.
func (r *MemoryRepository) ListOrdersByPhotographer(ctx context.Context, photographerID string) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ordersLocked(func(o *model.Order) bool { return o.PhotographerID == photographerID }), nil
}

// ListOrders возвращает все заказы с указанным статусом; пустой статус означает все заказы.
func (r *MemoryRepository) ListOrders(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ordersLocked(func(o *model.Order) bool { return status == "" || o.Status == status }), nil
}

func (r *MemoryRepository) ordersLocked(keep func(*model.Order) bool) []model.Order {
	var res []model.Order
	for _, o := range r.orders {
		if keep(o) {
			res = append(res, *cloneOrder(o))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].OrderID > res[j].OrderID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res
}

// UpdateOrder применяет fn к заказу атомарно. Если fn возвращает ошибку, заказ не меняется.
func (r *MemoryRepository) UpdateOrder(ctx context.Context, id string, fn func(*model.Order) error) (*model.Order, error) {
	r.mu.Lock()
	o, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return nil, apperr.NotFound("order", id)
	}

	work := cloneOrder(o)
	if err := fn(work); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.orders[id] = work
	r.mu.Unlock()

	r.notify(work.PhotographerID)
	return cloneOrder(work), nil
}

// CreateAdjustment сохраняет ручную корректировку.
func (r *MemoryRepository) CreateAdjustment(ctx context.Context, a *model.ManualAdjustment) error {
	r.mu.Lock()
	if _, ok := r.photographers[a.PhotographerID]; !ok {
		r.mu.Unlock()
		return apperr.NotFound("photographer", a.PhotographerID)
	}
	r.adjustments = append(r.adjustments, *a)
	r.mu.Unlock()

	r.notify(a.PhotographerID)
	return nil
}

// ListAdjustments возвращает корректировки фотографа в порядке создания.
func (r *MemoryRepository) ListAdjustments(ctx context.Context, photographerID string) ([]model.ManualAdjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.adjustmentsLocked(photographerID), nil
}

func (r *MemoryRepository) adjustmentsLocked(photographerID string) []model.ManualAdjustment {
	var res []model.ManualAdjustment
	for _, a := range r.adjustments {
		if a.PhotographerID == photographerID {
			res = append(res, a)
		}
	}
	return res
}

// LoadSnapshot возвращает согласованный срез данных фотографа.
func (r *MemoryRepository) LoadSnapshot(ctx context.Context, photographerID string) (*model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked(photographerID)
}

func (r *MemoryRepository) snapshotLocked(photographerID string) (*model.Snapshot, error) {
	p, ok := r.photographers[photographerID]
	if !ok {
		return nil, apperr.NotFound("photographer", photographerID)
	}
	return &model.Snapshot{
		Photographer: *p,
		Orders:       r.ordersLocked(func(o *model.Order) bool { return o.PhotographerID == photographerID }),
		Adjustments:  r.adjustmentsLocked(photographerID),
		Redeems:      r.redeemsLocked(func(q *model.RedeemRequest) bool { return q.PhotographerID == photographerID }),
	}, nil
}

// CreateRedeemRequest строит заявку через fn по актуальному срезу и сохраняет её в той же критической секции.
func (r *MemoryRepository) CreateRedeemRequest(ctx context.Context, photographerID string, fn func(*model.Snapshot) (*model.RedeemRequest, error)) (*model.RedeemRequest, error) {
	r.mu.Lock()
	snap, err := r.snapshotLocked(photographerID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	req, err := fn(snap)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	cp := *req
	r.redeems[req.ID] = &cp
	r.mu.Unlock()

	r.notify(photographerID)
	return req, nil
}

// ResolveRedeemRequest применяет fn к заявке атомарно.
func (r *MemoryRepository) ResolveRedeemRequest(ctx context.Context, id string, fn func(*model.RedeemRequest) error) (*model.RedeemRequest, error) {
	r.mu.Lock()
	q, ok := r.redeems[id]
	if !ok {
		r.mu.Unlock()
		return nil, apperr.NotFound("redeem request", id)
	}

	work := *q
	if err := fn(&work); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.redeems[id] = &work
	r.mu.Unlock()

	r.notify(work.PhotographerID)
	res := work
	return &res, nil
}

// GetRedeemRequest возвращает заявку по идентификатору.
func (r *MemoryRepository) GetRedeemRequest(ctx context.Context, id string) (*model.RedeemRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.redeems[id]
	if !ok {
		return nil, apperr.NotFound("redeem request", id)
	}
	cp := *q
	return &cp, nil
}

// ListRedeemRequests возвращает заявки фотографа, новые первыми.
func (r *MemoryRepository) ListRedeemRequests(ctx context.Context, photographerID string) ([]model.RedeemRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.redeemsLocked(func(q *model.RedeemRequest) bool { return q.PhotographerID == photographerID }), nil
}

// ListRedeemRequestsByStatus возвращает заявки с указанным статусом; пустой статус означает все.
func (r *MemoryRepository) ListRedeemRequestsByStatus(ctx context.Context, status model.RedeemStatus) ([]model.RedeemRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.redeemsLocked(func(q *model.RedeemRequest) bool { return status == "" || q.Status == status }), nil
}

func (r *MemoryRepository) redeemsLocked(keep func(*model.RedeemRequest) bool) []model.RedeemRequest {
	var res []model.RedeemRequest
	for _, q := range r.redeems {
		if keep(q) {
			res = append(res, *q)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].RequestedAt.Equal(res[j].RequestedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].RequestedAt.After(res[j].RequestedAt)
	})
	return res
}

// CreateModel сохраняет модель каталога.
func (r *MemoryRepository) CreateModel(ctx context.Context, m *model.CatalogModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *m
	r.models[m.ID] = &cp
	return nil
}

// GetModel возвращает модель каталога.
func (r *MemoryRepository) GetModel(ctx context.Context, id string) (*model.CatalogModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[id]
	if !ok {
		return nil, apperr.NotFound("model", id)
	}
	cp := *m
	return &cp, nil
}

// ListModels возвращает каталог, отсортированный по имени.
func (r *MemoryRepository) ListModels(ctx context.Context) ([]model.CatalogModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.CatalogModel, 0, len(r.models))
	for _, m := range r.models {
		res = append(res, *m)
	}
	sort.Slice(res, func(i, j int) bool {
		return strings.ToLower(res[i].Name) < strings.ToLower(res[j].Name)
	})
	return res, nil
}

// DeleteModel удаляет модель каталога.
func (r *MemoryRepository) DeleteModel(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[id]; !ok {
		return apperr.NotFound("model", id)
	}
	delete(r.models, id)
	return nil
}

// RecordOrphanUploads запоминает объекты, которые не удалось удалить.
func (r *MemoryRepository) RecordOrphanUploads(ctx context.Context, keys []string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, k := range keys {
		r.nextOrphan++
		r.orphans[r.nextOrphan] = &model.OrphanUpload{ID: r.nextOrphan, Key: k, Reason: reason, CreatedAt: now}
	}
	return nil
}

// ListOrphanUploads возвращает до limit записей, старые первыми.
func (r *MemoryRepository) ListOrphanUploads(ctx context.Context, limit int) ([]model.OrphanUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.OrphanUpload, 0, len(r.orphans))
	for _, o := range r.orphans {
		res = append(res, *o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// DeleteOrphanUpload удаляет запись после успешной очистки.
func (r *MemoryRepository) DeleteOrphanUpload(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.orphans, id)
	return nil
}

// MarkOrphanAttempt увеличивает счётчик неудачных попыток удаления.
func (r *MemoryRepository) MarkOrphanAttempt(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.orphans[id]; ok {
		o.Attempts++
	}
	return nil
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.PhotoURLs = append([]string(nil), o.PhotoURLs...)
	return &cp
}
