package audit

import (
	"strconv"

	"bloodbank-backend/internal/auth"
	"bloodbank-backend/internal/database"
	"bloodbank-backend/internal/models"
	"bloodbank-backend/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

// GET /api/audit-logs?collection_id=1&centre_id=C1&action=segregate
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		page := pagination.FromQuery(c, 50, 500)

		dbq := database.DB.Model(&models.SegregationAudit{})

		if centreID := actor.ScopeCentre(c.Query("centre_id")); centreID != "" {
			dbq = dbq.Where("centre_id = ?", centreID)
		}
		if v := c.Query("collection_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid_collection_id")
			}
			dbq = dbq.Where("collection_id = ?", id)
		}
		if v := c.Query("action"); v != "" {
			dbq = dbq.Where("action = ?", v)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return err
		}

		var logs []models.SegregationAudit
		if err := dbq.Order("created_at DESC, id DESC").
			Offset(page.Offset()).Limit(page.Limit).
			Find(&logs).Error; err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"meta": page.Meta(total),
			"data": logs,
		})
	}
}
