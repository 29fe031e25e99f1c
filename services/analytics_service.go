package services

import (
	"context"
	"sort"
	"time"

	"github.com/kendall-kelly/cafe-orders-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	DefaultPeriod = "7d"
	topItemsLimit = 5
)

var periods = map[string]time.Duration{
	"1d":  24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// MenuLookup loads menu items by id, including removed ones
type MenuLookup interface {
	Lookup(ctx context.Context, ids []uint) (map[uint]models.MenuItem, error)
}

// SalesTotal is the sum and number of sales in the window
type SalesTotal struct {
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

// TopItemMenu is the menu detail attached to a top item
type TopItemMenu struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

// TopItem is one of the best selling items in the window
type TopItem struct {
	ItemRef       uint            `json:"item_ref"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	MenuItem      TopItemMenu     `json:"menu_item"`
}

// DailySales is the sales of one UTC calendar day
type DailySales struct {
	Date   string          `json:"date"`
	Sales  decimal.Decimal `json:"sales"`
	Orders int64           `json:"orders"`
}

// StatusCount is the number of orders in one status
type StatusCount struct {
	Status models.OrderStatus `json:"status"`
	Count  int64              `json:"count"`
}

// Dashboard is the analytics summary for one period
type Dashboard struct {
	TotalSales  SalesTotal    `json:"total_sales"`
	TopItems    []TopItem     `json:"top_items"`
	DailySales  []DailySales  `json:"daily_sales"`
	OrderStatus []StatusCount `json:"order_status"`
	Period      string        `json:"period"`
}

// AnalyticsService computes read-only sales reports over the orders table.
// Sales figures only count delivered and ready orders.
type AnalyticsService struct {
	db     *gorm.DB
	menu   MenuLookup
	logger *zap.Logger
	now    func() time.Time
}

func NewAnalyticsService(db *gorm.DB, menu MenuLookup, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		db:     db,
		menu:   menu,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NormalizePeriod maps unknown periods to DefaultPeriod
func NormalizePeriod(period string) string {
	if _, ok := periods[period]; ok {
		return period
	}
	return DefaultPeriod
}

// Dashboard builds the report for period (admin only)
func (s *AnalyticsService) Dashboard(ctx context.Context, p Principal, period string) (*Dashboard, error) {
	if err := Authorize(p, RoleAdmin); err != nil {
		return nil, err
	}

	period = NormalizePeriod(period)
	since := s.now().Add(-periods[period])
	dashboard := &Dashboard{Period: period}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.totalSales(gctx, since)
		dashboard.TotalSales = total
		return err
	})
	g.Go(func() error {
		items, err := s.topItems(gctx, since)
		dashboard.TopItems = items
		return err
	})
	g.Go(func() error {
		daily, err := s.dailySales(gctx, since)
		dashboard.DailySales = daily
		return err
	})
	g.Go(func() error {
		statuses, err := s.orderStatus(gctx, since)
		dashboard.OrderStatus = statuses
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalError("Failed to build dashboard", err)
	}

	return dashboard, nil
}

func salesStatuses() []string {
	out := make([]string, len(models.SalesStatuses))
	for i, s := range models.SalesStatuses {
		out[i] = string(s)
	}
	return out
}

func (s *AnalyticsService) sales(ctx context.Context, since time.Time) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.status IN ? AND orders.created_at >= ?", salesStatuses(), since)
}

// totalSales sums in Go with decimal so fractional prices stay exact on every database
func (s *AnalyticsService) totalSales(ctx context.Context, since time.Time) (SalesTotal, error) {
	var rows []struct {
		TotalAmount decimal.Decimal
	}
	err := s.sales(ctx, since).
		Select("orders.total_amount").
		Scan(&rows).Error
	if err != nil {
		return SalesTotal{}, err
	}

	total := SalesTotal{Total: decimal.Zero, Count: int64(len(rows))}
	for _, row := range rows {
		total.Total = total.Total.Add(row.TotalAmount)
	}
	return total, nil
}

type topItemRow struct {
	ItemRef       uint
	TotalQuantity int64
	TotalRevenue  decimal.Decimal
}

func (s *AnalyticsService) topItems(ctx context.Context, since time.Time) ([]TopItem, error) {
	var lines []struct {
		MenuItemID uint
		Quantity   int64
		UnitPrice  decimal.Decimal
	}
	err := s.sales(ctx, since).
		Select("order_items.menu_item_id, order_items.quantity, order_items.unit_price").
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}

	byItem := make(map[uint]*topItemRow)
	for _, l := range lines {
		row, ok := byItem[l.MenuItemID]
		if !ok {
			row = &topItemRow{ItemRef: l.MenuItemID, TotalRevenue: decimal.Zero}
			byItem[l.MenuItemID] = row
		}
		row.TotalQuantity += l.Quantity
		row.TotalRevenue = row.TotalRevenue.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}

	rows := make([]topItemRow, 0, len(byItem))
	for _, row := range byItem {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalQuantity != rows[j].TotalQuantity {
			return rows[i].TotalQuantity > rows[j].TotalQuantity
		}
		return rows[i].ItemRef < rows[j].ItemRef
	})
	if len(rows) > topItemsLimit {
		rows = rows[:topItemsLimit]
	}

	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.ItemRef
	}
	menu, err := s.menu.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]TopItem, 0, len(rows))
	for _, row := range rows {
		menuItem, ok := menu[row.ItemRef]
		if !ok {
			s.logger.Debug("Skipping top item missing from menu", zap.Uint("item_ref", row.ItemRef))
			continue
		}
		items = append(items, TopItem{
			ItemRef:       row.ItemRef,
			TotalQuantity: row.TotalQuantity,
			TotalRevenue:  row.TotalRevenue,
			MenuItem: TopItemMenu{
				ID:       menuItem.ID,
				Name:     menuItem.Name,
				Category: menuItem.Category,
				Price:    menuItem.Price,
			},
		})
	}
	return items, nil
}

// dailySales groups in Go so the day boundary is UTC on every database
func (s *AnalyticsService) dailySales(ctx context.Context, since time.Time) ([]DailySales, error) {
	var rows []struct {
		CreatedAt   time.Time
		TotalAmount decimal.Decimal
	}
	err := s.sales(ctx, since).
		Select("orders.created_at, orders.total_amount").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DailySales)
	for _, row := range rows {
		day := row.CreatedAt.UTC().Format("2006-01-02")
		entry, ok := byDay[day]
		if !ok {
			entry = &DailySales{Date: day, Sales: decimal.Zero}
			byDay[day] = entry
		}
		entry.Sales = entry.Sales.Add(row.TotalAmount)
		entry.Orders++
	}

	daily := make([]DailySales, 0, len(byDay))
	for _, entry := range byDay {
		daily = append(daily, *entry)
	}
	sort.Slice(daily, func(i, j int) bool {
		return daily[i].Date < daily[j].Date
	})
	return daily, nil
}

func (s *AnalyticsService) orderStatus(ctx context.Context, since time.Time) ([]StatusCount, error) {
	counts := make([]StatusCount, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("status").
		Order("status ASC").
		Scan(&counts).Error
	return counts, err
}
