package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentGateway PaymentMethod = "GATEWAY"
	PaymentGrant   PaymentMethod = "GRANT"
)

// Payment evidences eligibility. TestID is empty for account-level grants.
type Payment struct {
	ID               string          `json:"id"`
	CandidateID      string          `json:"candidateId"`
	TestID           string          `json:"testId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Method           PaymentMethod   `json:"method"`
	OrderID          string          `json:"orderId,omitempty"`
	GatewayPaymentID string          `json:"gatewayPaymentId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// PendingOrder links a gateway order id back to the (candidate, test) pair.
type PendingOrder struct {
	OrderID     string          `json:"orderId"`
	CandidateID string          `json:"candidateId"`
	TestID      string          `json:"testId"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type CustomerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerPhone string `json:"customer_phone"`
	CustomerName  string `json:"customer_name,omitempty"`
}

type OrderMeta struct {
	ReturnURL string `json:"return_url"`
	NotifyURL string `json:"notify_url"`
}

// GatewayOrder is the create-order request sent to the payment gateway.
type GatewayOrder struct {
	OrderID         string            `json:"order_id"`
	OrderAmount     float64           `json:"order_amount"`
	OrderCurrency   string            `json:"order_currency"`
	CustomerDetails CustomerDetails   `json:"customer_details"`
	OrderMeta       OrderMeta         `json:"order_meta"`
	OrderTags       map[string]string `json:"order_tags,omitempty"`
}

// GatewayPaymentSuccess is the status the gateway reports for captured payments.
const GatewayPaymentSuccess = "SUCCESS"

// GatewayPayment is one entry of the gateway's payment list for an order.
type GatewayPayment struct {
	CFPaymentID   json.Number `json:"cf_payment_id"`
	OrderID       string      `json:"order_id"`
	PaymentStatus string      `json:"payment_status"`
	PaymentAmount float64     `json:"payment_amount"`
}

// WebhookEventPaymentSuccess is the only webhook type that records payments.
const WebhookEventPaymentSuccess = "PAYMENT_SUCCESS_WEBHOOK"

// WebhookEvent is the signed notification body posted by the gateway.
type WebhookEvent struct {
	Type      string `json:"type"`
	EventTime string `json:"event_time"`
	Data      struct {
		Order struct {
			OrderID     string            `json:"order_id"`
			OrderAmount float64           `json:"order_amount"`
			OrderTags   map[string]string `json:"order_tags"`
		} `json:"order"`
		Payment         GatewayPayment  `json:"payment"`
		CustomerDetails CustomerDetails `json:"customer_details"`
	} `json:"data"`
}
