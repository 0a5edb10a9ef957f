// Package payment wraps the payment gateway collaborator. The core only
// depends on the Gateway interface: order creation before checkout, signature
// verification after.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// Gateway is the boundary the payment service talks to.
type Gateway interface {
	// CreateOrder registers an order with the gateway and returns the
	// gateway's order id.
	CreateOrder(amountCents int64, currency, receipt string, notes map[string]interface{}) (string, error)
	// VerifySignature checks the gateway's payment signature: HMAC-SHA256
	// over "orderID|paymentID" with the shared key secret.
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

type razorpayGateway struct {
	client    *razorpay.Client
	keySecret string
}

// NewRazorpayGateway creates a Gateway backed by the Razorpay SDK.
func NewRazorpayGateway(keyID, keySecret string) Gateway {
	return &razorpayGateway{
		client:    razorpay.NewClient(keyID, keySecret),
		keySecret: keySecret,
	}
}

func (g *razorpayGateway) CreateOrder(amountCents int64, currency, receipt string, notes map[string]interface{}) (string, error) {
	data := map[string]interface{}{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}
	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("create gateway order: %w", err)
	}
	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("gateway order response missing id")
	}
	return id, nil
}

func (g *razorpayGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
