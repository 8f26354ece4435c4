package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"growledger/backend/internal/domain"
)

var lotExportHeader = []string{
	"item_id", "item_name", "category_id", "qty", "unit_cost", "currency",
	"bought_at", "remaining_qty", "status", "notes",
}

var saleExportHeader = []string{
	"sale_id", "item_id", "qty", "amount_gained", "currency",
	"total_cost", "profit", "sold_at", "notes",
}

// ExportLotsCSV streams every lot for the owner, one row per lot
// across all items.
func (s *Service) ExportLotsCSV(ctx context.Context, ownerID string, w io.Writer) error {
	items, err := s.repo.ListItems(ctx, ownerID)
	if err != nil {
		return err
	}

	out := csv.NewWriter(w)
	if err := out.Write(lotExportHeader); err != nil {
		return err
	}
	for _, item := range items {
		lots, err := s.repo.ListLotsForItem(ctx, ownerID, item.ID)
		if err != nil {
			return err
		}
		for _, lot := range lots {
			row := []string{
				lot.ItemID,
				lot.SnapshotName,
				lot.SnapshotCategoryID,
				strconv.Itoa(lot.QuantityBought),
				lot.UnitCost.String(),
				string(lot.Currency),
				lot.BoughtAt.UTC().Format(time.RFC3339),
				strconv.Itoa(lot.RemainingQty),
				lot.Status,
				lot.Notes,
			}
			if err := out.Write(row); err != nil {
				return err
			}
		}
	}
	out.Flush()
	return out.Error()
}

func (s *Service) ExportSalesCSV(ctx context.Context, ownerID string, w io.Writer) error {
	sales, err := s.repo.ListSales(ctx, ownerID)
	if err != nil {
		return err
	}

	out := csv.NewWriter(w)
	if err := out.Write(saleExportHeader); err != nil {
		return err
	}
	for _, sale := range sales {
		row := []string{
			sale.ID,
			sale.ItemID,
			strconv.Itoa(sale.QuantitySold),
			sale.AmountGained.String(),
			string(sale.Currency),
			sale.TotalCost.String(),
			sale.Profit.String(),
			sale.SoldAt.UTC().Format(time.RFC3339),
			sale.Notes,
		}
		if err := out.Write(row); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// ImportLotsCSV reads rows of item_name,qty,unit_cost,currency and
// optional bought_at,notes. Items are created by name on first sight.
// Unknown currencies are coerced to WL and counted in the report; bad
// rows are skipped and reported, never aborting the rest of the file.
func (s *Service) ImportLotsCSV(ctx context.Context, ownerID string, r io.Reader) (*domain.ImportReport, error) {
	in := csv.NewReader(r)
	in.FieldsPerRecord = -1
	in.TrimLeadingSpace = true

	report := &domain.ImportReport{}
	line := 0
	for {
		record, err := in.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 && looksLikeHeader(record) {
			continue
		}
		report.Rows++

		if len(record) < 4 {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: expected at least 4 columns", line))
			continue
		}
		name := strings.TrimSpace(record[0])
		qty, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || qty < 1 {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: bad quantity %q", line, record[1]))
			continue
		}
		unitCost, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil || unitCost.IsNegative() {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: bad unit cost %q", line, record[2]))
			continue
		}
		currency, known := domain.CoerceCurrency(record[3])
		if !known {
			report.Coerced++
			s.log.WithFields(logrus.Fields{
				"line":     line,
				"currency": record[3],
			}).Warn("unknown currency coerced to WL")
		}

		req := domain.LotCreateRequest{
			Qty:      qty,
			UnitCost: unitCost,
			Currency: string(currency),
		}
		if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
			boughtAt, err := time.Parse(time.RFC3339, strings.TrimSpace(record[4]))
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("line %d: bad bought_at %q", line, record[4]))
				continue
			}
			req.BoughtAt = &boughtAt
		}
		if len(record) > 5 {
			req.Notes = strings.TrimSpace(record[5])
		}

		item, err := s.findOrCreateItem(ctx, ownerID, name)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		req.ItemID = item.ID
		if _, err := s.AddLot(ctx, ownerID, req); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		report.Imported++
	}
	return report, nil
}

// ImportSalesCSV reads rows of item_name,qty,amount_gained,currency
// and optional sold_at,notes. Rows run through the same recording
// path as the API, so the stock gate applies per row.
func (s *Service) ImportSalesCSV(ctx context.Context, ownerID string, r io.Reader) (*domain.ImportReport, error) {
	in := csv.NewReader(r)
	in.FieldsPerRecord = -1
	in.TrimLeadingSpace = true

	report := &domain.ImportReport{}
	line := 0
	for {
		record, err := in.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 && looksLikeHeader(record) {
			continue
		}
		report.Rows++

		if len(record) < 4 {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: expected at least 4 columns", line))
			continue
		}
		name := strings.TrimSpace(record[0])
		qty, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || qty < 1 {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: bad quantity %q", line, record[1]))
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil || !amount.IsPositive() {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: bad amount %q", line, record[2]))
			continue
		}
		currency, known := domain.CoerceCurrency(record[3])
		if !known {
			report.Coerced++
			s.log.WithFields(logrus.Fields{
				"line":     line,
				"currency": record[3],
			}).Warn("unknown currency coerced to WL")
		}

		item, err := s.findOrCreateItem(ctx, ownerID, name)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		req := domain.SaleCreateRequest{
			ItemID:       item.ID,
			Qty:          qty,
			AmountGained: amount,
			Currency:     string(currency),
		}
		if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
			soldAt, err := time.Parse(time.RFC3339, strings.TrimSpace(record[4]))
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("line %d: bad sold_at %q", line, record[4]))
				continue
			}
			req.SoldAt = &soldAt
		}
		if len(record) > 5 {
			req.Notes = strings.TrimSpace(record[5])
		}

		if _, err := s.RecordSale(ctx, ownerID, req); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		report.Imported++
	}
	return report, nil
}

func (s *Service) findOrCreateItem(ctx context.Context, ownerID string, name string) (*domain.Item, error) {
	if name == "" {
		return nil, fmt.Errorf("item name is required")
	}
	items, err := s.repo.ListItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if strings.EqualFold(item.Name, name) {
			found := item
			return &found, nil
		}
	}
	return s.CreateItem(ctx, ownerID, domain.ItemCreateRequest{Name: name})
}

func looksLikeHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "item_name" || first == "item_id"
}
