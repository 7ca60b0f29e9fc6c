package inventory

import (
	"strconv"
	"time"

	"bloodbank-backend/internal/auth"
	"bloodbank-backend/internal/database"
	"bloodbank-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Row is one inventory counter joined with its blood group name.
type Row struct {
	InventoryID    uint             `json:"inventory_id"`
	CentreID       string           `json:"centre_id"`
	BloodGroupID   uint             `json:"blood_group_id"`
	BloodGroupName string           `json:"blood_group_name"`
	Component      models.Component `json:"component"`
	UnitsAvailable int              `json:"units_available"`
	LastUpdated    *time.Time       `json:"last_updated"`
}

const rowColumns = `bi.inventory_id, bi.centre_id, bi.blood_group_id,
	COALESCE(bg.group_name, '') AS blood_group_name,
	bi.component, bi.units_available, bi.last_updated`

func rowsQuery() *gorm.DB {
	return database.DB.Table("blood_inventory AS bi").
		Joins("LEFT JOIN blood_groups bg ON bg.id = bi.blood_group_id")
}

// Filter narrows inventory reads. Zero values mean no filter.
type Filter struct {
	CentreID     string
	BloodGroupID uint
	Component    models.Component
}

// filterFromQuery reads centre_id, blood_group_id and component, forcing
// centre-bound callers onto their home centre.
func filterFromQuery(c *fiber.Ctx, actor auth.Actor) (Filter, error) {
	f := Filter{CentreID: actor.ScopeCentre(c.Query("centre_id"))}

	if v := c.Query("blood_group_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Filter{}, fiber.NewError(fiber.StatusBadRequest, "invalid_blood_group_id")
		}
		f.BloodGroupID = uint(id)
	}
	if v := c.Query("component"); v != "" {
		comp, ok := models.ParseComponent(v)
		if !ok {
			return Filter{}, fiber.NewError(fiber.StatusBadRequest, "invalid_component")
		}
		f.Component = comp
	}
	return f, nil
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.CentreID != "" {
		q = q.Where("bi.centre_id = ?", f.CentreID)
	}
	if f.BloodGroupID != 0 {
		q = q.Where("bi.blood_group_id = ?", f.BloodGroupID)
	}
	if f.Component != "" {
		q = q.Where("bi.component = ?", f.Component)
	}
	return q
}

func (f Filter) centreLabel() string {
	if f.CentreID == "" {
		return "all"
	}
	return f.CentreID
}
