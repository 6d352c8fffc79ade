package main

import (
	"io"
	"strings"

	"github.com/plaenen/refactory/pkg/factory/report"
	"github.com/plaenen/refactory/pkg/observability"
	"github.com/plaenen/refactory/pkg/transport/rpc"
	"golang.org/x/text/message"
)

func renderResult(p *message.Printer, out io.Writer, result rpc.CommandResult) {
	for _, e := range result.Events {
		p.Fprintf(out, "#%d %s\n", e.Version, strings.TrimRight(e.Description, "\n"))
	}
	if !result.Published {
		p.Fprintln(out, "warning: events were stored but not published")
	}
}

func renderHistory(p *message.Printer, out io.Writer, history []rpc.EventView) {
	if len(history) == 0 {
		p.Fprintln(out, "no events yet")
		return
	}
	for _, e := range history {
		p.Fprintf(out, "#%d %s\n", e.Version, strings.TrimRight(e.Description, "\n"))
	}
}

func renderState(p *message.Printer, out io.Writer, s rpc.StateView) {
	p.Fprintf(out, "factory %s at version %d\n", s.FactoryID, s.Version)
	p.Fprintf(out, "employees: %s\n", joinOrNone(s.Employees))
	p.Fprintf(out, "unloaded today: %s\n", joinOrNone(s.UnloadedToday))
	p.Fprintf(out, "produced today: %s\n", joinOrNone(s.ProducedToday))
	p.Fprintf(out, "shipments in cargo bay: %d\n", s.PendingShipments)
	p.Fprintf(out, "wheels: %d\nengines: %d\nbits and pieces: %d\n",
		s.Inventory.Wheels, s.Inventory.Engines, s.Inventory.BitsAndPieces)
}

func renderReport(p *message.Printer, out io.Writer, summaries []report.Summary) {
	if len(summaries) == 0 {
		p.Fprintln(out, "no factories yet")
		return
	}
	for _, s := range summaries {
		p.Fprintf(out, "%s: %d employees, %d shipments (%d parts), %d curses, %d cars\n",
			s.FactoryID, s.Employees, s.ShipmentsReceived, s.PartsReceived, s.CursesHeard, s.CarsProduced)
	}
}

func renderSpans(p *message.Printer, out io.Writer, spans []observability.SpanRecord) {
	for _, s := range spans {
		status := "ok"
		if s.Failed {
			status = "error: " + s.Message
		}
		p.Fprintf(out, "%s %s %v %s\n", s.Start.Format("15:04:05.000"), s.Name, s.Duration, status)
	}
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
