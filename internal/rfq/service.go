package rfq

import (
	"context"
	"log/slog"
	"strings"

	"github.com/metalyard/metalyard/internal/inventory"
)

// InventoryLister loads the caller's stock with material and grade names.
type InventoryLister interface {
	List(ctx context.Context, tenant string) ([]inventory.Item, error)
}

// Service prepares RFQ requests for the interpreter.
type Service struct {
	interp Interpreter
	stock  InventoryLister
	logger *slog.Logger
}

// NewService builds Service.
func NewService(interp Interpreter, stock InventoryLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{interp: interp, stock: stock, logger: logger}
}

// Parse extracts the requested materials from raw RFQ text.
func (s *Service) Parse(ctx context.Context, tenant, text string) (Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Summary{}, ErrEmptyText
	}
	summary, err := s.interp.ParseRFQ(ctx, text)
	if err != nil {
		return Summary{}, err
	}
	s.logger.Info("rfq parsed", slog.String("tenant", tenant), slog.Int("materials", len(summary.Materials)))
	return summary, nil
}

// Draft suggests inventory matches for the requested items. Only stock owned by tenant is
// offered to the model; with none, there is nothing to suggest and the model is not called.
func (s *Service) Draft(ctx context.Context, tenant string, req DraftRequest) (Draft, error) {
	if len(req.ParsedRFQs) == 0 {
		return Draft{}, ErrMissingItems
	}
	if req.InventoryList == nil {
		stock, err := s.loadInventory(ctx, tenant)
		if err != nil {
			return Draft{}, err
		}
		req.InventoryList = stock
	} else {
		req.InventoryList = FilterOwned(req.InventoryList, tenant)
	}
	if len(req.InventoryList) == 0 {
		return Draft{Items: []Suggestion{}}, nil
	}
	items, err := s.interp.DraftQuote(ctx, req)
	if err != nil {
		return Draft{}, err
	}
	s.logger.Info("rfq draft", slog.String("tenant", tenant),
		slog.Int("requested", len(req.ParsedRFQs)), slog.Int("suggested", len(items)))
	if items == nil {
		items = []Suggestion{}
	}
	return Draft{Items: items}, nil
}

func (s *Service) loadInventory(ctx context.Context, tenant string) ([]InventoryEntry, error) {
	if s.stock == nil {
		return []InventoryEntry{}, nil
	}
	items, err := s.stock.List(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]InventoryEntry, 0, len(items))
	for _, it := range items {
		out = append(out, InventoryEntry{
			UserID:       it.UserID,
			MaterialName: it.MaterialName,
			GradeName:    it.GradeLabel,
			Length:       it.Length,
			Width:        it.Width,
			Thickness:    it.Thickness,
			OnHand:       it.OnHand,
		})
	}
	return out, nil
}

// FilterOwned keeps the entries owned by tenant.
func FilterOwned(entries []InventoryEntry, tenant string) []InventoryEntry {
	out := make([]InventoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.UserID == tenant {
			out = append(out, e)
		}
	}
	return out
}
