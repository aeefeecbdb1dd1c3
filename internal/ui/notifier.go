package ui

import "github.com/cmalf/cryptobar/internal/update"

// NoticePrinter shows update notices as printer lines.
type NoticePrinter struct {
	P Printer
}

// Notify implements update.Notifier.
func (n NoticePrinter) Notify(notice update.Notice) {
	if n.P.Structured() {
		return
	}
	msg := notice.Title
	if notice.Body != "" {
		msg += ": " + notice.Body
	}
	if notice.Level == update.NoticeCritical {
		n.P.Error(msg)
		return
	}
	n.P.Success(msg)
}
