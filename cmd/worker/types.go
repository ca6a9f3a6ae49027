package main

// ConfirmationMessage is the payload sent from API -> SQS -> Worker for each
// confirmed delivery.
type ConfirmationMessage struct {
	Token         string `json:"token"`
	Cliente       string `json:"cliente"`
	Ruta          string `json:"ruta"`
	Llegada       string `json:"llegada"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
