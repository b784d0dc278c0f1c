package worker

// email_worker.go
// Processes receipt e-mail jobs from QueueEmail. The PDF is rendered from the
// receipt content carried in the job, so the worker never touches the database.

import (
	"context"
	"encoding/json"

	"github.com/andrewhilario/grocery-pos-backend/internal/infra"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrPermanent marks a job that must not be retried.
var ErrPermanent = errors.New("permanent job failure")

// ReceiptEmailJob is the payload sent to QueueEmail.
type ReceiptEmailJob struct {
	To      string               `json:"to"`
	Subject string               `json:"subject"`
	Receipt model.ReceiptContent `json:"receipt"`
}

// ReceiptSender delivers one rendered receipt.
type ReceiptSender interface {
	SendReceipt(to, subject, body string, pdf []byte, filename string) error
}

// EmailWorker sends receipts through the SMTP relay, guarded by a circuit breaker.
type EmailWorker struct {
	sender ReceiptSender
	cb     *infra.Breaker
}

// NewEmailWorker creates an EmailWorker. cb may be nil.
func NewEmailWorker(sender ReceiptSender, cb *infra.Breaker) *EmailWorker {
	return &EmailWorker{sender: sender, cb: cb}
}

// Process renders the receipt PDF and mails it with the text rendering as body.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var job ReceiptEmailJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return errors.Wrapf(ErrPermanent, "email_worker: invalid payload: %v", err)
	}
	if job.To == "" {
		return errors.Wrap(ErrPermanent, "email_worker: empty recipient")
	}

	pdf, err := infra.RenderReceiptPDF(job.Receipt)
	if err != nil {
		return errors.Wrapf(ErrPermanent, "email_worker: %v", err)
	}

	send := func() error {
		return w.sender.SendReceipt(job.To, job.Subject, job.Receipt.Render(), pdf, job.Receipt.ReceiptNumber+".pdf")
	}
	if w.cb != nil {
		err = w.cb.Execute(send)
	} else {
		err = send()
	}
	if err != nil {
		log.Error().Err(err).Str("to", job.To).Str("receipt", job.Receipt.ReceiptNumber).Msg("email_worker: failed to send receipt")
		return err
	}
	log.Info().Str("to", job.To).Str("receipt", job.Receipt.ReceiptNumber).Msg("email_worker: receipt sent")
	return nil
}
