// Package service реализует бизнес-логику сервиса printhub.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/printhub/internal/allocator"
	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/ledger"
	"github.com/mmeshcher/printhub/internal/metrics"
	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/validation"
	"github.com/mmeshcher/printhub/internal/workflow"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
// Методы с колбэком выполняют чтение-изменение-запись атомарно под блокировкой фотографа.
type Repository interface {
	Close() error

	CreatePhotographer(ctx context.Context, p *model.Photographer) error
	GetPhotographer(ctx context.Context, id string) (*model.Photographer, error)
	GetPhotographerByEmail(ctx context.Context, email string) (*model.Photographer, error)
	ListPhotographers(ctx context.Context) ([]model.Photographer, error)
	UpdateBankDetails(ctx context.Context, photographerID string, details model.BankDetails) error

	NextPhotographerSeq(ctx context.Context) (int64, error)
	NextOrderSeq(ctx context.Context, photographerID string) (string, int64, error)

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrdersByPhotographer(ctx context.Context, photographerID string) ([]model.Order, error)
	ListOrders(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	UpdateOrder(ctx context.Context, id string, fn func(*model.Order) error) (*model.Order, error)

	CreateAdjustment(ctx context.Context, a *model.ManualAdjustment) error
	ListAdjustments(ctx context.Context, photographerID string) ([]model.ManualAdjustment, error)

	LoadSnapshot(ctx context.Context, photographerID string) (*model.Snapshot, error)
	CreateRedeemRequest(ctx context.Context, photographerID string, fn func(*model.Snapshot) (*model.RedeemRequest, error)) (*model.RedeemRequest, error)
	ResolveRedeemRequest(ctx context.Context, id string, fn func(*model.RedeemRequest) error) (*model.RedeemRequest, error)
	GetRedeemRequest(ctx context.Context, id string) (*model.RedeemRequest, error)
	ListRedeemRequests(ctx context.Context, photographerID string) ([]model.RedeemRequest, error)
	ListRedeemRequestsByStatus(ctx context.Context, status model.RedeemStatus) ([]model.RedeemRequest, error)

	CreateModel(ctx context.Context, m *model.CatalogModel) error
	GetModel(ctx context.Context, id string) (*model.CatalogModel, error)
	ListModels(ctx context.Context) ([]model.CatalogModel, error)
	DeleteModel(ctx context.Context, id string) error

	RecordOrphanUploads(ctx context.Context, keys []string, reason string) error
	ListOrphanUploads(ctx context.Context, limit int) ([]model.OrphanUpload, error)
	DeleteOrphanUpload(ctx context.Context, id int64) error
	MarkOrphanAttempt(ctx context.Context, id int64) error

	ListenChanges(ctx context.Context, fn func(photographerID string)) error
}

// ObjectStore описывает хранилище загруженных файлов.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// Idempotency выполняет операцию не более одного раза на ключ и возвращает идентификатор результата.
type Idempotency interface {
	Do(ctx context.Context, scope, key string, fn func(ctx context.Context) (string, error)) (string, bool, error)
}

// Options содержит настраиваемые параметры бизнес-логики.
type Options struct {
	AdminEmail             string
	Rates                  ledger.Rates
	StrictOrderTransitions bool
	Allocation             allocator.Config
	OrphanSweepInterval    time.Duration
}

// Service содержит бизнес-логику сервиса printhub.
type Service struct {
	repo    Repository
	store   ObjectStore
	idem    Idempotency
	metrics *metrics.Metrics
	logger  *zap.Logger

	alloc   *allocator.Allocator
	engine  *ledger.Engine
	orders  *workflow.OrderFlow
	redeems *workflow.RedeemFlow
	hub     *Hub

	opts Options
	now  func() time.Time
}

// NewService создаёт сервис. store, idem, m и logger могут быть nil.
func NewService(repo Repository, store ObjectStore, idem Idempotency, m *metrics.Metrics, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Rates.EarningPerOrder.IsZero() && opts.Rates.PenaltyPerUnaccepted.IsZero() {
		opts.Rates = ledger.DefaultRates()
	}
	if opts.Allocation.Backoff <= 0 {
		opts.Allocation.Backoff = allocator.DefaultConfig().Backoff
	}
	if opts.OrphanSweepInterval <= 0 {
		opts.OrphanSweepInterval = time.Minute
	}
	opts.AdminEmail = normalizeEmail(opts.AdminEmail)

	engine := ledger.NewEngine(opts.Rates)

	return &Service{
		repo:    repo,
		store:   store,
		idem:    idem,
		metrics: m,
		logger:  logger,
		alloc:   allocator.New(repo, opts.Allocation, m),
		engine:  engine,
		orders:  workflow.NewOrderFlow(engine, opts.StrictOrderTransitions),
		redeems: workflow.NewRedeemFlow(engine),
		hub:     NewHub(),
		opts:    opts,
		now:     time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Engine возвращает движок расчёта заработка.
func (s *Service) Engine() *ledger.Engine {
	return s.engine
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdminEmail сообщает, совпадает ли email с настроенным адресом администратора.
func (s *Service) IsAdminEmail(email string) bool {
	return s.opts.AdminEmail != "" && normalizeEmail(email) == s.opts.AdminEmail
}

// ActorFor строит описание вызывающего для выпуска токена.
func (s *Service) ActorFor(p *model.Photographer) model.Actor {
	return model.Actor{ID: p.ID, Email: p.Email, Admin: s.IsAdminEmail(p.Email)}
}

func requireAdmin(actor model.Actor) error {
	if !actor.Admin {
		return fmt.Errorf("%w: admin only", apperr.ErrForbidden)
	}
	return nil
}

func requireOwnerOrAdmin(actor model.Actor, photographerID string) error {
	if actor.Admin || actor.ID == photographerID {
		return nil
	}
	return fmt.Errorf("%w: not your account", apperr.ErrForbidden)
}

// SignupInput содержит данные регистрации фотографа.
type SignupInput struct {
	DisplayName string
	Email       string
	PhoneNumber string
	Password    string
}

// Signup регистрирует фотографа и выделяет ему код. Без подтверждённого кода документ не создаётся.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.Photographer, error) {
	name := strings.TrimSpace(in.DisplayName)
	email := normalizeEmail(in.Email)
	phone := strings.TrimSpace(in.PhoneNumber)

	if name == "" {
		return nil, apperr.Invalid("displayName", "is required")
	}
	if !validation.IsValidEmail(email) {
		return nil, apperr.Invalid("email", "is not a valid address")
	}
	if !validation.IsValidPhone(phone) {
		return nil, apperr.Invalid("phoneNumber", "phone number must be at least 10 digits")
	}
	if len(in.Password) < validation.MinPasswordLength {
		return nil, apperr.Invalid("password", "must be at least 6 characters")
	}

	if _, err := s.repo.GetPhotographerByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email %s", apperr.ErrAlreadyExists, email)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	code, err := s.alloc.PhotographerID(ctx, name)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &model.Photographer{
		ID:           uuid.NewString(),
		Code:         code,
		DisplayName:  name,
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreatePhotographer(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("photographer signed up", zap.String("photographer_id", p.ID), zap.String("code", p.Code))
	return p, nil
}

// Login проверяет email и пароль.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Photographer, error) {
	p, err := s.repo.GetPhotographerByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p, nil
}

// Profile возвращает профиль вызывающего.
func (s *Service) Profile(ctx context.Context, actor model.Actor) (*model.Photographer, error) {
	return s.repo.GetPhotographer(ctx, actor.ID)
}

// UpdateBankDetails обновляет реквизиты. Фотограф меняет свои, администратор любые.
func (s *Service) UpdateBankDetails(ctx context.Context, actor model.Actor, photographerID string, details model.BankDetails) (*model.Photographer, error) {
	if err := requireOwnerOrAdmin(actor, photographerID); err != nil {
		return nil, err
	}

	details = validation.NormalizeBankDetails(details)
	if err := validation.BankDetails(details); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBankDetails(ctx, photographerID, details); err != nil {
		return nil, err
	}
	return s.repo.GetPhotographer(ctx, photographerID)
}
