package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"campus-events/internal/models"
	"campus-events/internal/store"
	"campus-events/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles merchandise purchases and the proof-of-payment workflow
type OrderService struct {
	store     *store.Store
	inventory *InventoryClient
	tickets   TicketIssuer
	notify    notifier
	logger    *zap.Logger
	now       Clock
}

// NewOrderService creates a new order service. publisher may be nil.
func NewOrderService(
	store *store.Store,
	inventory *InventoryClient,
	tickets TicketIssuer,
	publisher Publisher,
) *OrderService {
	logger := util.GetLogger()
	return &OrderService{
		store:     store,
		inventory: inventory,
		tickets:   tickets,
		notify:    notifier{publisher: publisher, logger: logger},
		logger:    logger,
		now:       systemClock,
	}
}

// PurchaseRequest is a direct purchase of one merchandise item
type PurchaseRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

// CreateOrderRequest opens an order awaiting proof of payment. The item may
// also be chosen at approval time.
type CreateOrderRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// OrderAction is the organizer's decision on a pending order
type OrderAction string

const (
	OrderApprove OrderAction = "approve"
	OrderReject  OrderAction = "reject"
)

// UpdateOrderStatusRequest carries the organizer's decision on a pending order
type UpdateOrderStatusRequest struct {
	Action   OrderAction `json:"action" binding:"required"`
	Reason   string      `json:"reason"`
	ItemID   string      `json:"item_id"`
	Quantity int         `json:"quantity"`
}

// checkOrderable applies the event-level checks shared by both purchase entry
// points, in the same order as registration for normal events
func (s *OrderService) checkOrderable(ctx context.Context, actor models.Actor, eventID string) (*models.Event, error) {
	if err := requireParticipant(actor); err != nil {
		return nil, err
	}

	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Type != models.EventTypeMerchandise || !e.OpenForRegistration() {
		util.RegistrationsRejectedTotal.WithLabelValues("not_open").Inc()
		return nil, models.Fail(models.ErrNotOpen, "event is not taking orders")
	}
	if e.DeadlinePassed(s.now()) {
		util.RegistrationsRejectedTotal.WithLabelValues("deadline").Inc()
		return nil, models.Fail(models.ErrDeadlinePassed, "orders closed at %s", e.RegistrationDeadline.Format("2006-01-02 15:04 MST"))
	}

	existing, err := lookupRegistration(ctx, s.store, e.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.Fail(models.ErrAlreadyExists, "you already have an order for this event")
	}

	if e.HasCapacity() && e.SeatsTaken >= e.Capacity {
		util.RegistrationsRejectedTotal.WithLabelValues("capacity").Inc()
		return nil, models.Fail(models.ErrCapacityReached, "event is full")
	}
	if e.IIITOnly && !actor.IIITAffiliated {
		util.RegistrationsRejectedTotal.WithLabelValues("eligibility").Inc()
		return nil, models.Fail(models.ErrNotEligible, "event is restricted to IIIT members")
	}
	return e, nil
}

func checkItem(e *models.Event, itemID string, qty int) (*models.MerchandiseItem, error) {
	item, ok := e.Item(itemID)
	if !ok {
		return nil, models.Fail(models.ErrNotFound, "item %s is not sold at this event", itemID)
	}
	if qty < 1 {
		return nil, models.Fail(models.ErrValidationFailed, "quantity must be at least 1")
	}
	if item.PurchaseLimit > 0 && qty > item.PurchaseLimit {
		return nil, models.Fail(models.ErrValidationFailed, "at most %d of %q per participant", item.PurchaseLimit, item.Name)
	}
	return item, nil
}

// Purchase buys an item outright: stock is taken and a ticket issued at once
func (s *OrderService) Purchase(ctx context.Context, actor models.Actor, eventID string, req *PurchaseRequest) (*models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Purchase")
	defer span.End()

	e, err := s.checkOrderable(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	item, err := checkItem(e, req.ItemID, req.Quantity)
	if err != nil {
		return nil, err
	}

	claimed, err := s.store.ClaimSeat(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		util.RegistrationsRejectedTotal.WithLabelValues("capacity").Inc()
		return nil, models.Fail(models.ErrCapacityReached, "event is full")
	}

	ok, err := s.inventory.Decrement(ctx, item.ID, req.Quantity)
	if err != nil {
		s.releaseSeat(ctx, e.ID)
		return nil, err
	}
	if !ok {
		s.releaseSeat(ctx, e.ID)
		util.RegistrationsRejectedTotal.WithLabelValues("out_of_stock").Inc()
		return nil, models.Fail(models.ErrOutOfStock, "%q is out of stock", item.Name)
	}

	// from here on every failure must hand back the stock and the seat
	r, err := s.persistPurchase(ctx, e, actor, item.ID, req.Quantity)
	if err != nil {
		s.compensate(ctx, e.ID, item.ID, req.Quantity)
		return nil, err
	}

	util.OrdersCreatedTotal.WithLabelValues("purchase").Inc()
	s.logger.Info("Merchandise purchased",
		zap.String("registration_id", r.ID),
		zap.String("event_id", e.ID),
		zap.String("item_id", item.ID),
		zap.Int("quantity", req.Quantity))

	s.notify.ticketIssued(ctx, e, r)
	if err := completeOnRead(ctx, s.store, e, r, s.now()); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *OrderService) persistPurchase(ctx context.Context, e *models.Event, actor models.Actor, itemID string, qty int) (*models.Registration, error) {
	if err := s.store.LockForm(ctx, e.ID); err != nil {
		return nil, fmt.Errorf("failed to lock merchandise: %w", err)
	}

	ticket, err := s.tickets.Issue(e.ID, actor.ID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue ticket: %w", err)
	}

	paid := models.PaymentSuccessful
	r := &models.Registration{
		ID:               uuid.NewString(),
		EventID:          e.ID,
		ParticipantID:    actor.ID,
		ParticipantEmail: actor.Email,
		Status:           models.RegistrationUpcoming,
		PaymentStatus:    &paid,
		ItemID:           &itemID,
		Quantity:         qty,
	}
	r.AttachTicket(ticket)

	created, err := s.store.CreateRegistration(ctx, r)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, models.Fail(models.ErrAlreadyExists, "you already have an order for this event")
	}
	return r, nil
}

func (s *OrderService) compensate(ctx context.Context, eventID, itemID string, qty int) {
	if err := s.inventory.Restore(ctx, itemID, qty); err != nil {
		s.logger.Error("Failed to restore stock",
			zap.String("item_id", itemID),
			zap.Int("quantity", qty),
			zap.Error(err))
	}
	s.releaseSeat(ctx, eventID)
}

func (s *OrderService) releaseSeat(ctx context.Context, eventID string) {
	if err := s.store.ReleaseSeat(ctx, eventID); err != nil {
		s.logger.Error("Failed to release seat", zap.String("event_id", eventID), zap.Error(err))
	}
}

// CreateOrder opens an order awaiting proof of payment. No stock is taken yet.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, eventID string, req *CreateOrderRequest) (*models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	e, err := s.checkOrderable(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	r := &models.Registration{
		ID:               uuid.NewString(),
		EventID:          e.ID,
		ParticipantID:    actor.ID,
		ParticipantEmail: actor.Email,
		Status:           models.RegistrationUpcoming,
	}
	awaiting := models.PaymentAwaiting
	r.PaymentStatus = &awaiting

	if req != nil && req.ItemID != "" {
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if _, err := checkItem(e, req.ItemID, req.Quantity); err != nil {
			return nil, err
		}
		itemID := req.ItemID
		r.ItemID = &itemID
		r.Quantity = req.Quantity
	}

	claimed, err := s.store.ClaimSeat(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		util.RegistrationsRejectedTotal.WithLabelValues("capacity").Inc()
		return nil, models.Fail(models.ErrCapacityReached, "event is full")
	}

	if err := s.store.LockForm(ctx, e.ID); err != nil {
		s.releaseSeat(ctx, e.ID)
		return nil, fmt.Errorf("failed to lock merchandise: %w", err)
	}

	created, err := s.store.CreateRegistration(ctx, r)
	if err != nil {
		s.releaseSeat(ctx, e.ID)
		return nil, err
	}
	if !created {
		s.releaseSeat(ctx, e.ID)
		return nil, models.Fail(models.ErrAlreadyExists, "you already have an order for this event")
	}

	util.OrdersCreatedTotal.WithLabelValues("proof_of_payment").Inc()
	s.logger.Info("Order created",
		zap.String("registration_id", r.ID),
		zap.String("event_id", e.ID))
	if err := completeOnRead(ctx, s.store, e, r, s.now()); err != nil {
		return nil, err
	}
	return r, nil
}

// validProofReference accepts an http(s) URL or a storage path without
// whitespace or control characters
func validProofReference(ref string) bool {
	if ref == "" {
		return false
	}
	for _, c := range ref {
		if unicode.IsSpace(c) || unicode.IsControl(c) {
			return false
		}
	}
	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	}
	return true
}

// UploadProof attaches a payment proof to the caller's order and sends it for approval
func (s *OrderService) UploadProof(ctx context.Context, actor models.Actor, registrationID, proof string) (*models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UploadProof")
	defer span.End()

	r, e, err := loadRegistration(ctx, s.store, registrationID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(actor); err != nil {
		return nil, err
	}
	if r.ParticipantID != actor.ID {
		return nil, models.Fail(models.ErrForbidden, "order belongs to someone else")
	}
	if e.Type != models.EventTypeMerchandise {
		return nil, models.Fail(models.ErrNotOpen, "only merchandise orders take payment proofs")
	}

	proof = strings.TrimSpace(proof)
	if !validProofReference(proof) {
		return nil, models.Fail(models.ErrValidationFailed, "payment proof must be a stored file path or URL")
	}

	switch r.Payment() {
	case models.PaymentAwaiting, models.PaymentRejected:
	default:
		return nil, models.Fail(models.ErrInvalidTransition, "cannot upload proof while payment is %s", r.Payment())
	}

	ok, err := s.store.SubmitPaymentProof(ctx, r.ID, proof)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.Fail(models.ErrInvalidTransition, "order changed while uploading proof")
	}

	s.logger.Info("Payment proof submitted", zap.String("registration_id", r.ID))
	return readRegistration(ctx, s.store, e, r.ID, s.now())
}

// UpdateOrderStatus approves or rejects a pending order. Approval takes the
// stock and issues the ticket; if stock is short the order stays pending.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor models.Actor, registrationID string, req *UpdateOrderStatusRequest) (*models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	r, e, err := loadRegistration(ctx, s.store, registrationID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, e); err != nil {
		return nil, err
	}
	if e.Type != models.EventTypeMerchandise {
		return nil, models.Fail(models.ErrNotOpen, "only merchandise orders need approval")
	}
	if err := completeOnRead(ctx, s.store, e, r, s.now()); err != nil {
		return nil, err
	}
	if r.Payment() != models.PaymentPendingApproval {
		return nil, models.Fail(models.ErrInvalidTransition, "order is %s, not pending approval", r.Payment())
	}

	switch req.Action {
	case OrderReject:
		return s.reject(ctx, e, r, req.Reason)
	case OrderApprove:
		return s.approve(ctx, e, r, req)
	}
	return nil, models.Fail(models.ErrValidationFailed, "action must be approve or reject")
}

func (s *OrderService) reject(ctx context.Context, e *models.Event, r *models.Registration, reason string) (*models.Registration, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.Fail(models.ErrValidationFailed, "a rejection reason is required")
	}

	ok, err := s.store.RejectOrder(ctx, r.ID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.Fail(models.ErrInvalidTransition, "order is no longer pending approval")
	}

	util.OrdersPaymentRejectedTotal.Inc()
	s.logger.Info("Order rejected",
		zap.String("registration_id", r.ID),
		zap.String("reason", reason))

	s.notify.orderRejected(ctx, e, r, reason)
	return readRegistration(ctx, s.store, e, r.ID, s.now())
}

func (s *OrderService) approve(ctx context.Context, e *models.Event, r *models.Registration, req *UpdateOrderStatusRequest) (*models.Registration, error) {
	itemID, qty := req.ItemID, req.Quantity
	if itemID == "" && r.ItemID != nil {
		itemID = *r.ItemID
	}
	if qty == 0 {
		qty = r.Quantity
	}
	if itemID == "" || qty == 0 {
		return nil, models.Fail(models.ErrValidationFailed, "approval needs an item and a quantity")
	}
	item, err := checkItem(e, itemID, qty)
	if err != nil {
		return nil, err
	}

	ok, err := s.inventory.Decrement(ctx, item.ID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		util.RegistrationsRejectedTotal.WithLabelValues("out_of_stock").Inc()
		return nil, models.Fail(models.ErrOutOfStock, "%q is out of stock", item.Name)
	}

	ticket, err := s.tickets.Issue(e.ID, r.ParticipantID, item.ID)
	if err != nil {
		s.restore(ctx, item.ID, qty)
		return nil, fmt.Errorf("failed to issue ticket: %w", err)
	}

	r.ItemID = &item.ID
	r.Quantity = qty
	r.AttachTicket(ticket)

	approved, err := s.store.ApproveOrder(ctx, r)
	if err != nil {
		s.restore(ctx, item.ID, qty)
		return nil, err
	}
	if !approved {
		s.restore(ctx, item.ID, qty)
		return nil, models.Fail(models.ErrInvalidTransition, "order is no longer pending approval")
	}

	util.OrdersApprovedTotal.Inc()
	s.logger.Info("Order approved",
		zap.String("registration_id", r.ID),
		zap.String("item_id", item.ID),
		zap.Int("quantity", qty))

	fresh, err := readRegistration(ctx, s.store, e, r.ID, s.now())
	if err != nil {
		return nil, err
	}
	s.notify.ticketIssued(ctx, e, fresh)
	return fresh, nil
}

func (s *OrderService) restore(ctx context.Context, itemID string, qty int) {
	if err := s.inventory.Restore(ctx, itemID, qty); err != nil {
		s.logger.Error("Failed to restore stock",
			zap.String("item_id", itemID),
			zap.Int("quantity", qty),
			zap.Error(err))
	}
}

// ItemAvailability returns the remaining stock of an item sold at an event
func (s *OrderService) ItemAvailability(ctx context.Context, eventID, itemID string) (int, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ItemAvailability")
	defer span.End()

	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if e.Status == models.EventStatusDraft {
		return 0, models.Fail(models.ErrNotFound, "event %s not found", eventID)
	}
	if _, ok := e.Item(itemID); !ok {
		return 0, models.Fail(models.ErrNotFound, "item %s is not sold at this event", itemID)
	}
	return s.inventory.Available(ctx, itemID)
}
