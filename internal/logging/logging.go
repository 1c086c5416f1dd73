// README: Structured JSON logging over the standard logger.
package logging

import (
	"encoding/json"
	"log"
	"time"
)

type Fields struct {
	Component  string `json:"component"`
	OrderID    string `json:"order_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Reference  string `json:"reference,omitempty"`
	Status     string `json:"status,omitempty"`
	Count      int    `json:"count,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

func Log(fields Fields) {
	payload := map[string]any{
		"component": fields.Component,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if fields.OrderID != "" {
		payload["order_id"] = fields.OrderID
	}
	if fields.CustomerID != "" {
		payload["customer_id"] = fields.CustomerID
	}
	if fields.Reference != "" {
		payload["reference"] = fields.Reference
	}
	if fields.Status != "" {
		payload["status"] = fields.Status
	}
	if fields.Count != 0 {
		payload["count"] = fields.Count
	}
	if fields.Message != "" {
		payload["message"] = fields.Message
	}
	if fields.Error != "" {
		payload["error"] = fields.Error
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"component\":%q,\"status\":\"log_error\",\"error\":%q}", fields.Component, err.Error())
		return
	}
	log.Print(string(data))
}
