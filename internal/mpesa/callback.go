package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

// CallbackEnvelope is the body Daraja posts to CallBackURL.
type CallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values arrive as numbers or strings depending on Name.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// CallbackAck is what we always answer, whatever happened internally.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var Accepted = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}

func ParseCallback(body []byte) (*STKCallback, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid callback payload: %w", err)
	}
	cb := env.Body.STKCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("callback missing CheckoutRequestID")
	}
	return &cb, nil
}

// Metadata returns the named metadata value as a string.
func (cb *STKCallback) Metadata(name string) string {
	if cb.CallbackMetadata == nil {
		return ""
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name != name || len(item.Value) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err == nil {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(item.Value, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func (cb *STKCallback) Result() domain.PaymentResult {
	return domain.PaymentResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		ReceiptNumber:     cb.Metadata("MpesaReceiptNumber"),
	}
}

// Result converts a status query into the same shape as a callback.
func (r *QueryResponse) Result() domain.PaymentResult {
	code, err := strconv.Atoi(r.ResultCode)
	if err != nil {
		code = -1
	}
	return domain.PaymentResult{
		CheckoutRequestID: r.CheckoutRequestID,
		MerchantRequestID: r.MerchantRequestID,
		ResultCode:        code,
		ResultDesc:        r.ResultDesc,
	}
}
