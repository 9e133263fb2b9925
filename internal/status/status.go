package status

import "errors"

var (
	ErrTicketNotFound   = errors.New("ticket: ticket not found")
	ErrPayloadCorrupted = errors.New("ticket: payload corrupted")
	ErrSaleNotFound     = errors.New("ticket: sale not found")
)

// Operator-facing reasons, kept in pt-BR to match the scanner UI.
const (
	ReasonNoToken        = "Não autorizado (sem token)"
	ReasonInvalidToken   = "Não autorizado (token inválido)"
	ReasonMissingPayload = "QR Code ou evento não fornecido"
	ReasonCorrupted      = "QR Code inválido ou corrompido"
	ReasonEventMismatch  = "Ingresso não pertence a este evento"
	ReasonSaleNotFound   = "Ingresso não encontrado na tabela vendas. Verifique se o ID existe e se o evento está correto."
	ReasonAlreadyScanned = "Ingresso já foi bipado"
	ReasonAlreadyUsed    = "Ingresso já foi utilizado"
	ReasonCancelled      = "Ingresso cancelado"
	ReasonPaymentPending = "Pagamento não confirmado"
	ReasonConcurrentScan = "Ingresso já foi utilizado (validação concorrente)"
	ReasonValid          = "Ingresso válido"
	ReasonInternalError  = "Erro interno do servidor"
)
