package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	obslogger "github.com/kadkita/kadkita/internal/observability/logger"
	orderdomain "github.com/kadkita/kadkita/internal/order/domain"
)

const paymentMethodBillplz = "Billplz"

// HandleCallback processes one webhook delivery: verify the signature, log
// the delivery, correlate it to an order and settle. Deliveries are at least
// once; a replay surfaces ErrAlreadySettled, which the HTTP layer acknowledges
// with a 200 so the provider stops retrying.
func (s *Service) HandleCallback(ctx context.Context, payload *orderdomain.CallbackPayload, headerSignature string) error {
	log := obslogger.FromContext(ctx).Named("order.webhook")

	verifyErr := s.verifier.Verify(payload, headerSignature)

	order, err := s.correlate(ctx, payload)
	if err != nil {
		return err
	}

	record := &orderdomain.CallbackRecord{
		ID:          s.genID.Generate(),
		BillID:      payload.BillID,
		Payload:     callbackJSON(payload),
		SignatureOK: verifyErr == nil,
		ReceivedAt:  time.Now().UTC(),
	}
	if order != nil {
		record.OrderID = &order.ID
	}
	if err := s.repo.InsertCallback(ctx, s.db, record); err != nil {
		return err
	}

	if verifyErr != nil {
		s.recordWebhook(ctx, "rejected")
		return verifyErr
	}
	if order == nil {
		log.Warn("callback matched no order",
			zap.String("bill_id", payload.BillID),
			zap.String("reference_1", payload.Reference1),
		)
		s.recordWebhook(ctx, "unmatched")
		return orderdomain.ErrOrderNotFound
	}

	if !payload.Paid {
		if err := s.repo.MarkFailed(ctx, s.db, order.ID); err != nil {
			return err
		}
		log.Info("payment not completed",
			zap.Int64("order_id", order.ID.Int64()),
			zap.String("state", payload.State),
		)
		s.recordWebhook(ctx, "failed_payment")
		return s.markProcessed(ctx, record)
	}

	if err := s.CompleteOrder(ctx, order.ID, paymentMethodBillplz); err != nil {
		if err == orderdomain.ErrAlreadySettled {
			s.recordWebhook(ctx, "duplicate")
			if markErr := s.markProcessed(ctx, record); markErr != nil {
				return markErr
			}
			return err
		}
		s.recordWebhook(ctx, "error")
		return err
	}

	s.recordWebhook(ctx, "settled")
	return s.markProcessed(ctx, record)
}

// correlate resolves the delivery to an order via reference_1, falling back
// to the provider's bill id when the reference is absent or stale.
func (s *Service) correlate(ctx context.Context, payload *orderdomain.CallbackPayload) (*orderdomain.Order, error) {
	if ref := payload.Reference1; ref != "" {
		if parsed, err := strconv.ParseInt(ref, 10, 64); err == nil {
			order, err := s.repo.FindByID(ctx, s.db, snowflake.ID(parsed))
			if err != nil {
				return nil, err
			}
			if order != nil {
				return order, nil
			}
		}
	}
	return s.repo.FindByProviderPaymentID(ctx, s.db, payload.BillID)
}

func (s *Service) markProcessed(ctx context.Context, record *orderdomain.CallbackRecord) error {
	return s.repo.MarkCallbackProcessed(ctx, s.db, record.ID, time.Now().UTC())
}

func (s *Service) recordWebhook(ctx context.Context, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhook(ctx, outcome)
	}
}

func callbackJSON(payload *orderdomain.CallbackPayload) datatypes.JSON {
	encoded, err := json.Marshal(payload.Raw)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(encoded)
}
