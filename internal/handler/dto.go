package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/ledger"
	"github.com/mmeshcher/printhub/internal/model"
	"github.com/mmeshcher/printhub/internal/service"
	"github.com/mmeshcher/printhub/internal/workflow"
)

func init() {
	// Суммы уходят в JSON числами, а не строками, без потери точности.
	decimal.MarshalJSONWithoutQuotes = true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type photographerResponse struct {
	ID          string            `json:"id"`
	Code        string            `json:"photographerId"`
	DisplayName string            `json:"displayName"`
	Email       string            `json:"email"`
	PhoneNumber string            `json:"phoneNumber"`
	BankDetails model.BankDetails `json:"bankDetails"`
	IsAdmin     bool              `json:"isAdmin"`
	CreatedAt   string            `json:"createdAt"`
}

func toPhotographer(p *model.Photographer, admin bool) photographerResponse {
	return photographerResponse{
		ID:          p.ID,
		Code:        p.Code,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		BankDetails: p.BankDetails,
		IsAdmin:     admin,
		CreatedAt:   formatTime(p.CreatedAt),
	}
}

type buyerDTO struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Pincode string `json:"pincode"`
}

type orderResponse struct {
	ID               string   `json:"id"`
	OrderID          string   `json:"orderId"`
	PhotographerID   string   `json:"photographerId"`
	PhotographerCode string   `json:"photographerCode"`
	PhotographerName string   `json:"photographerName"`
	Buyer            buyerDTO `json:"buyer"`
	ModelID          string   `json:"modelId,omitempty"`
	ModelName        string   `json:"modelName,omitempty"`
	Remarks          string   `json:"remarks,omitempty"`
	PhotoURLs        []string `json:"photoUrls"`
	Status           string   `json:"status"`
	AdminComments    string   `json:"adminComments,omitempty"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

func toOrder(o *model.Order) orderResponse {
	urls := o.PhotoURLs
	if urls == nil {
		urls = []string{}
	}
	return orderResponse{
		ID:               o.ID,
		OrderID:          o.OrderID,
		PhotographerID:   o.PhotographerID,
		PhotographerCode: o.PhotographerCode,
		PhotographerName: o.PhotographerName,
		Buyer: buyerDTO{
			Name:    o.Buyer.Name,
			Phone:   o.Buyer.Phone,
			Address: o.Buyer.Address,
			Pincode: o.Buyer.Pincode,
		},
		ModelID:       o.ModelID,
		ModelName:     o.ModelName,
		Remarks:       o.Remarks,
		PhotoURLs:     urls,
		Status:        string(o.Status),
		AdminComments: o.AdminComments,
		CreatedAt:     formatTime(o.CreatedAt),
		UpdatedAt:     formatTime(o.UpdatedAt),
	}
}

func toOrders(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrder(&orders[i]))
	}
	return resp
}

type transitionResponse struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Delta decimal.Decimal `json:"delta"`
}

type orderStatusResponse struct {
	Order      orderResponse      `json:"order"`
	Transition transitionResponse `json:"transition"`
}

func toTransition(t workflow.Transition) transitionResponse {
	return transitionResponse{From: string(t.From), To: string(t.To), Delta: t.Delta}
}

type entryResponse struct {
	SourceID    string          `json:"sourceId"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
}

type reportResponse struct {
	PhotographerID     string          `json:"photographerId"`
	PhotographerCode   string          `json:"photographerCode"`
	TotalOrders        int             `json:"totalOrders"`
	ProgressOrders     int             `json:"progressOrders"`
	DeliveredOrders    int             `json:"deliveredOrders"`
	UnacceptedOrders   int             `json:"unacceptedOrders"`
	RejectedOrders     int             `json:"rejectedOrders"`
	TotalEarnings      decimal.Decimal `json:"totalEarnings"`
	TotalPenalties     decimal.Decimal `json:"totalPenalties"`
	OrderEarnings      decimal.Decimal `json:"orderEarnings"`
	AdjustmentEarnings decimal.Decimal `json:"adjustmentEarnings"`
	GrossEarnings      decimal.Decimal `json:"grossEarnings"`
	TotalRedeemed      decimal.Decimal `json:"totalRedeemed"`
	RedeemableEarnings decimal.Decimal `json:"redeemableEarnings"`
	PendingRedeem      decimal.Decimal `json:"pendingRedeem"`
	AvailableToRedeem  decimal.Decimal `json:"availableToRedeem"`
	Entries            []entryResponse `json:"entries"`
}

func toReport(e *service.Earnings) reportResponse {
	r := e.Report
	resp := reportResponse{
		PhotographerID:     e.Photographer.ID,
		PhotographerCode:   e.Photographer.Code,
		TotalOrders:        r.Total,
		ProgressOrders:     r.Progress,
		DeliveredOrders:    r.Delivered,
		UnacceptedOrders:   r.Unaccepted,
		RejectedOrders:     r.Rejected,
		TotalEarnings:      r.TotalEarnings,
		TotalPenalties:     r.TotalPenalties,
		OrderEarnings:      r.OrderEarnings,
		AdjustmentEarnings: r.AdjustmentEarnings,
		GrossEarnings:      r.GrossEarnings,
		TotalRedeemed:      r.TotalRedeemed,
		RedeemableEarnings: r.RedeemableEarnings,
		PendingRedeem:      r.PendingRedeem,
		AvailableToRedeem:  r.Available(),
		Entries:            toEntries(r.Entries),
	}
	return resp
}

func toEntries(entries []ledger.Entry) []entryResponse {
	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, entryResponse{
			SourceID:    e.SourceID,
			Type:        string(e.Kind),
			Description: e.Description,
			Amount:      e.Amount,
			Date:        formatTime(e.Date),
		})
	}
	return resp
}

type adminPhotographerResponse struct {
	Photographer photographerResponse `json:"photographer"`
	Earnings     reportResponse       `json:"earnings"`
}

type adjustmentResponse struct {
	ID             string          `json:"id"`
	PhotographerID string          `json:"photographerId"`
	Amount         decimal.Decimal `json:"amount"`
	Remarks        string          `json:"remarks"`
	AdminID        string          `json:"adminId"`
	AdminEmail     string          `json:"adminEmail"`
	CreatedAt      string          `json:"createdAt"`
}

func toAdjustment(a *model.ManualAdjustment) adjustmentResponse {
	return adjustmentResponse{
		ID:             a.ID,
		PhotographerID: a.PhotographerID,
		Amount:         a.Amount,
		Remarks:        a.Remarks,
		AdminID:        a.AdminID,
		AdminEmail:     a.AdminEmail,
		CreatedAt:      formatTime(a.CreatedAt),
	}
}

type redeemResponse struct {
	ID             string          `json:"id"`
	PhotographerID string          `json:"photographerId"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	AmountPaid     decimal.Decimal `json:"amountPaid"`
	Remarks        string          `json:"remarks,omitempty"`
	AdminID        string          `json:"adminId,omitempty"`
	RequestedAt    string          `json:"requestedAt"`
	ProcessedAt    *string         `json:"processedAt,omitempty"`
}

func toRedeem(q *model.RedeemRequest) redeemResponse {
	resp := redeemResponse{
		ID:             q.ID,
		PhotographerID: q.PhotographerID,
		Amount:         q.Amount,
		Status:         string(q.Status),
		AmountPaid:     q.AmountPaid,
		Remarks:        q.Remarks,
		AdminID:        q.AdminID,
		RequestedAt:    formatTime(q.RequestedAt),
	}
	if q.ProcessedAt != nil {
		s := formatTime(*q.ProcessedAt)
		resp.ProcessedAt = &s
	}
	return resp
}

func toRedeems(list []model.RedeemRequest) []redeemResponse {
	resp := make([]redeemResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toRedeem(&list[i]))
	}
	return resp
}

type modelResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func toModel(m *model.CatalogModel) modelResponse {
	return modelResponse{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		ImageURL:    m.ImageURL,
		CreatedAt:   formatTime(m.CreatedAt),
	}
}
