package segregation

import (
	"errors"
	"strconv"
	"time"

	"bloodbank-backend/internal/auth"
	"bloodbank-backend/internal/database"
	"bloodbank-backend/internal/models"
	"bloodbank-backend/internal/pagination"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SegregateRequest struct {
	Components []string `json:"components"`
}

// POST /api/segregation/:collection_id
func SegregateHandler(engine *Engine, exposeDetail bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		collectionID, err := strconv.ParseUint(c.Params("collection_id"), 10, 64)
		if err != nil || collectionID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid_collection_id")
		}

		// The engine applies the centre rule after the existence check.
		actor, ok := auth.ActorFromLocals(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		}

		var body SegregateRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid_body")
			}
		}

		result, err := engine.Segregate(c.UserContext(), uint(collectionID), body.Components, actor)
		if err != nil {
			return writeError(c, err, exposeDetail)
		}

		return c.JSON(fiber.Map{
			"ok":           true,
			"segregations": result.Segregations,
		})
	}
}

func writeError(c *fiber.Ctx, err error, exposeDetail bool) error {
	var se *Error
	if !errors.As(err, &se) {
		se = serverError(err)
	}

	resp := fiber.Map{"error": se.Code}
	if len(se.Components) > 0 {
		resp["components"] = se.Components
	}
	if se.Kind == KindServer && exposeDetail && se.Err != nil {
		resp["detail"] = se.Err.Error()
	}
	return c.Status(se.Kind.Status()).JSON(resp)
}

type SegregationView struct {
	models.BloodSegregation
	DonorID        uint   `json:"donor_id"`
	DonorFirstName string `json:"donor_first_name"`
	DonorLastName  string `json:"donor_last_name"`
}

func baseQuery() *gorm.DB {
	return database.DB.Table("blood_segregation AS bs").
		Joins("JOIN blood_collection bc ON bc.collection_id = bs.collection_id").
		Joins("LEFT JOIN donors d ON d.donor_id = bc.donor_id")
}

// GET /api/segregation?centre_id=&collection_id=&component=&page=&limit=
func ListSegregationsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		page := pagination.FromQuery(c, 50, 500)

		q := baseQuery()
		if centreID := actor.ScopeCentre(c.Query("centre_id")); centreID != "" {
			q = q.Where("bs.centre_id = ?", centreID)
		}
		if v := c.Query("collection_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid_collection_id")
			}
			q = q.Where("bs.collection_id = ?", id)
		}
		if v := c.Query("component"); v != "" {
			comp, ok := models.ParseComponent(v)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "invalid_component")
			}
			q = q.Where("bs.component = ?", comp)
		}
		if v := c.Query("status"); v != "" {
			q = q.Where("bs.status = ?", v)
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return err
		}

		var rows []SegregationView
		if err := q.Select("bs.*, bc.donor_id, d.first_name AS donor_first_name, d.last_name AS donor_last_name").
			Order("bs.segregated_at DESC, bs.segregation_id DESC").
			Offset(page.Offset()).Limit(page.Limit).
			Scan(&rows).Error; err != nil {
			return err
		}
		if rows == nil {
			rows = []SegregationView{}
		}

		return c.JSON(fiber.Map{
			"meta": page.Meta(total),
			"data": rows,
		})
	}
}

// GET /api/segregation/:segregation_id
func GetSegregationHandler(loc *time.Location) fiber.Handler {
	if loc == nil {
		loc = time.UTC
	}
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		id, err := strconv.ParseUint(c.Params("segregation_id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid_segregation_id")
		}

		var rows []SegregationView
		if err := baseQuery().
			Select("bs.*, bc.donor_id, d.first_name AS donor_first_name, d.last_name AS donor_last_name").
			Where("bs.segregation_id = ?", id).
			Limit(1).
			Scan(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "not_found")
		}
		if !actor.CanAccessCentre(rows[0].CentreID) {
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		}

		view := rows[0]
		return c.JSON(fiber.Map{
			"data":           view,
			"days_to_expiry": DaysUntilExpiry(view.ExpiryDate, time.Now().In(loc)),
		})
	}
}

// DaysUntilExpiry counts whole calendar days from now, read in now's location,
// to the expiry date. It is negative once the unit has expired.
func DaysUntilExpiry(expiry, now time.Time) int {
	today := CalendarDay(now)
	day := CalendarDay(expiry.UTC())
	return int(day.Sub(today).Hours() / 24)
}
