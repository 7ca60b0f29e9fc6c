package inventory

import (
	"time"

	"bloodbank-backend/internal/models"
)

// SummaryRow is one aggregated (centre, blood group, component) total.
type SummaryRow struct {
	CentreID       string
	BloodGroupID   uint
	BloodGroupName string
	Component      models.Component
	UnitsAvailable int
	LastUpdated    *time.Time
}

type ComponentUnits struct {
	Component      models.Component `json:"component"`
	UnitsAvailable int              `json:"units_available"`
	LastUpdated    *time.Time       `json:"last_updated,omitempty"`
}

type BloodGroupSummary struct {
	BloodGroupID   uint             `json:"blood_group_id"`
	BloodGroupName string           `json:"blood_group_name"`
	TotalUnits     int              `json:"total_units"`
	Components     []ComponentUnits `json:"components"`
}

type CentreSummary struct {
	CentreID    string              `json:"centre_id"`
	TotalUnits  int                 `json:"total_units"`
	BloodGroups []BloodGroupSummary `json:"blood_groups"`
}

// GroupByBloodGroup nests rows under their blood group, keeping the order in
// which groups first appear. Rows for the same group and component are summed.
func GroupByBloodGroup(rows []SummaryRow) []BloodGroupSummary {
	out := []BloodGroupSummary{}
	index := map[uint]int{}

	for _, r := range rows {
		i, ok := index[r.BloodGroupID]
		if !ok {
			i = len(out)
			index[r.BloodGroupID] = i
			out = append(out, BloodGroupSummary{
				BloodGroupID:   r.BloodGroupID,
				BloodGroupName: r.BloodGroupName,
				Components:     []ComponentUnits{},
			})
		}
		g := &out[i]
		g.TotalUnits += r.UnitsAvailable
		g.Components = addComponent(g.Components, r)
	}
	return out
}

// GroupByCentre nests rows as centre -> blood group -> component.
func GroupByCentre(rows []SummaryRow) []CentreSummary {
	var order []string
	byCentre := map[string][]SummaryRow{}
	for _, r := range rows {
		if _, ok := byCentre[r.CentreID]; !ok {
			order = append(order, r.CentreID)
		}
		byCentre[r.CentreID] = append(byCentre[r.CentreID], r)
	}

	out := make([]CentreSummary, 0, len(order))
	for _, id := range order {
		groups := GroupByBloodGroup(byCentre[id])
		total := 0
		for _, g := range groups {
			total += g.TotalUnits
		}
		out = append(out, CentreSummary{CentreID: id, TotalUnits: total, BloodGroups: groups})
	}
	return out
}

func addComponent(list []ComponentUnits, r SummaryRow) []ComponentUnits {
	for i := range list {
		if list[i].Component == r.Component {
			list[i].UnitsAvailable += r.UnitsAvailable
			list[i].LastUpdated = latest(list[i].LastUpdated, r.LastUpdated)
			return list
		}
	}
	return append(list, ComponentUnits{
		Component:      r.Component,
		UnitsAvailable: r.UnitsAvailable,
		LastUpdated:    r.LastUpdated,
	})
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
