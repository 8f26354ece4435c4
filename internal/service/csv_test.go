package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestImportLotsCSV(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"item_name,qty,unit_cost,currency,bought_at,notes",
		"Chandelier Seed,200,1.5,WL,2026-02-01T10:00:00Z,from market",
		"Chandelier Seed,100,2.0,wl,,",
		"Phoenix Wings,3,42.5,DL,,",
		"Mystery Orb,5,1.0,GEMS,,",
		"Bad Row,zero,1.0,WL,,",
	}, "\n")

	report, err := s.ImportLotsCSV(ctx, testOwner, strings.NewReader(input))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Rows != 5 || report.Imported != 4 {
		t.Fatalf("expected 4 of 5 rows imported, got %+v", report)
	}
	if report.Coerced != 1 {
		t.Fatalf("expected 1 coerced currency, got %d", report.Coerced)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "bad quantity") {
		t.Fatalf("expected one quantity error, got %v", report.Errors)
	}

	items, err := s.Items(ctx, testOwner)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items created by name, got %d", len(items))
	}

	// The coerced row lands as WL.
	for _, item := range items {
		if item.Name != "Mystery Orb" {
			continue
		}
		lots, err := s.LotsForItem(ctx, testOwner, item.ID, false)
		if err != nil {
			t.Fatalf("list lots: %v", err)
		}
		if len(lots) != 1 || string(lots[0].Currency) != "WL" {
			t.Fatalf("expected one WL lot for coerced row, got %+v", lots)
		}
	}
}

func TestImportSalesCSVAppliesStockGate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	item := mustItem(t, s, "Chandelier Seed")
	mustLot(t, s, item.ID, 10, "1", time.Now().UTC())

	input := strings.Join([]string{
		"item_name,qty,amount_gained,currency",
		"Chandelier Seed,6,12,WL",
		"Chandelier Seed,6,12,WL",
	}, "\n")

	report, err := s.ImportSalesCSV(ctx, testOwner, strings.NewReader(input))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 1 {
		t.Fatalf("second row must fail the stock gate, got %+v", report)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "insufficient stock") {
		t.Fatalf("expected insufficient stock row error, got %v", report.Errors)
	}
}

func TestExportLotsCSVRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	item := mustItem(t, s, "Chandelier Seed")
	mustLot(t, s, item.ID, 200, "1.5", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	if err := s.ExportLotsCSV(ctx, testOwner, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "item_id,item_name") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "Chandelier Seed") || !strings.Contains(lines[1], "1.5") || !strings.Contains(lines[1], "WL") {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestExportSalesCSV(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	item := mustItem(t, s, "Chandelier Seed")
	mustLot(t, s, item.ID, 100, "1.5", time.Now().UTC())
	mustSale(t, s, item.ID, 40, "100")

	var buf bytes.Buffer
	if err := s.ExportSalesCSV(ctx, testOwner, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "40") || !strings.Contains(lines[1], "100") {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}
