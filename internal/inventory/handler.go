package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bloodbank-backend/internal/auth"
	"bloodbank-backend/internal/cache"
	"bloodbank-backend/internal/pagination"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	lowStockLimit = 1000
	exportLimit   = 10000
)

// GET /api/inventory?centre_id=&blood_group_id=&component=&page=&limit=
func ListInventoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		filter, err := filterFromQuery(c, actor)
		if err != nil {
			return err
		}
		page := pagination.FromQuery(c, 100, 500)

		var total int64
		if err := filter.apply(rowsQuery()).Count(&total).Error; err != nil {
			return err
		}

		rows := []Row{}
		if err := filter.apply(rowsQuery()).
			Select(rowColumns).
			Order("bi.last_updated DESC NULLS LAST, bi.centre_id, bi.blood_group_id, bi.component").
			Offset(page.Offset()).Limit(page.Limit).
			Scan(&rows).Error; err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"meta": page.Meta(total),
			"data": rows,
		})
	}
}

// GET /api/inventory/:inventory_id
func GetInventoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		id, err := parseDigits(c.Params("inventory_id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid_inventory_id")
		}

		var rows []Row
		if err := rowsQuery().Select(rowColumns).
			Where("bi.inventory_id = ?", id).
			Limit(1).
			Scan(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "inventory_not_found")
		}
		if !actor.CanAccessCentre(rows[0].CentreID) {
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		}

		return c.JSON(fiber.Map{"data": rows[0]})
	}
}

// parseDigits accepts ASCII digits only, no sign or whitespace.
func parseDigits(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid digit %q", r)
		}
	}
	return strconv.ParseUint(s, 10, 64)
}

func loadSummaryRows(ctx context.Context, filter Filter) ([]SummaryRow, error) {
	var rows []SummaryRow
	err := filter.apply(rowsQuery().WithContext(ctx)).
		Select(`bi.centre_id, bi.blood_group_id,
			COALESCE(bg.group_name, '') AS blood_group_name,
			bi.component,
			SUM(bi.units_available)::int AS units_available,
			MAX(bi.last_updated) AS last_updated`).
		Group("bi.centre_id, bi.blood_group_id, bg.group_name, bi.component").
		Order("bi.centre_id, bg.group_name, bi.component").
		Scan(&rows).Error
	return rows, err
}

// cached serves key from store, computing and storing it on a miss. Cache
// errors only cost a recomputation.
func cached[T any](ctx context.Context, store cache.Cache, logger *zap.Logger, key string, compute func() (T, error)) (T, error) {
	var v T
	if store != nil {
		hit, err := store.GetJSON(ctx, key, &v)
		if err != nil {
			logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		if hit {
			return v, nil
		}
	}

	v, err := compute()
	if err != nil {
		return v, err
	}
	if store != nil {
		if err := store.SetJSON(ctx, key, v); err != nil {
			logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

type summaryResponse struct {
	CentreID *string             `json:"centre_id"`
	Summary  []BloodGroupSummary `json:"summary"`
}

// GET /api/inventory/summary?centre_id=&blood_group_id=
func SummaryHandler(store cache.Cache, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		filter, err := filterFromQuery(c, actor)
		if err != nil {
			return err
		}
		filter.Component = ""

		key := fmt.Sprintf("%ssummary:%s:%d", cache.InventoryKeyPrefix, filter.centreLabel(), filter.BloodGroupID)
		resp, err := cached(c.UserContext(), store, logger, key, func() (summaryResponse, error) {
			rows, err := loadSummaryRows(c.UserContext(), filter)
			if err != nil {
				return summaryResponse{}, err
			}
			out := summaryResponse{Summary: GroupByBloodGroup(rows)}
			if filter.CentreID != "" {
				centre := filter.CentreID
				out.CentreID = &centre
			}
			return out, nil
		})
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// GET /api/inventory/global-summary (Admin, SuperAdmin)
func GlobalSummaryHandler(store cache.Cache, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		data, err := cached(c.UserContext(), store, logger, cache.InventoryKeyPrefix+"global", func() ([]CentreSummary, error) {
			rows, err := loadSummaryRows(c.UserContext(), Filter{})
			if err != nil {
				return nil, err
			}
			return GroupByCentre(rows), nil
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": data})
	}
}

// GET /api/inventory/low-stock?threshold=1&centre_id=
func LowStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		threshold := 1
		if v := c.Query("threshold"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid_threshold")
			}
			threshold = n
		}
		filter := Filter{CentreID: actor.ScopeCentre(c.Query("centre_id"))}

		rows := []Row{}
		if err := filter.apply(rowsQuery()).
			Select(rowColumns).
			Where("bi.units_available <= ?", threshold).
			Order("bi.units_available ASC, bi.last_updated ASC").
			Limit(lowStockLimit).
			Scan(&rows).Error; err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"threshold": threshold,
			"count":     len(rows),
			"data":      rows,
		})
	}
}

func exportRows(c *fiber.Ctx) (Filter, []Row, error) {
	actor, err := auth.ActorFromCtx(c)
	if err != nil {
		return Filter{}, nil, err
	}
	filter, err := filterFromQuery(c, actor)
	if err != nil {
		return Filter{}, nil, err
	}

	var rows []Row
	err = filter.apply(rowsQuery()).
		Select(rowColumns).
		Order("bi.centre_id, bi.blood_group_id, bi.component").
		Limit(exportLimit).
		Scan(&rows).Error
	return filter, rows, err
}

// GET /api/inventory/export.csv
func ExportCSVHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, rows, err := exportRows(c)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := WriteCSV(&buf, rows); err != nil {
			return err
		}

		c.Attachment(ExportFilename(filter.centreLabel(), time.Now(), "csv"))
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(buf.Bytes())
	}
}

// GET /api/inventory/export.xlsx
func ExportXLSXHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, rows, err := exportRows(c)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := WriteXLSX(&buf, rows); err != nil {
			return err
		}

		c.Attachment(ExportFilename(filter.centreLabel(), time.Now(), "xlsx"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		return c.Send(buf.Bytes())
	}
}
