package inventory

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"bloodbank-backend/internal/auth"
	"bloodbank-backend/internal/middleware"
	"bloodbank-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func ts(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func TestGroupByBloodGroup(t *testing.T) {
	rows := []SummaryRow{
		{CentreID: "C1", BloodGroupID: 1, BloodGroupName: "A+", Component: models.ComponentPlasma, UnitsAvailable: 4, LastUpdated: ts("2024-03-01T10:00:00Z")},
		{CentreID: "C1", BloodGroupID: 1, BloodGroupName: "A+", Component: models.ComponentRBC, UnitsAvailable: 2},
		{CentreID: "C1", BloodGroupID: 7, BloodGroupName: "O-", Component: models.ComponentRBC, UnitsAvailable: 1},
		// Same group and component from a second centre is summed.
		{CentreID: "C2", BloodGroupID: 1, BloodGroupName: "A+", Component: models.ComponentPlasma, UnitsAvailable: 3, LastUpdated: ts("2024-03-02T10:00:00Z")},
	}

	got := GroupByBloodGroup(rows)
	if len(got) != 2 {
		t.Fatalf("got %d groups", len(got))
	}
	a := got[0]
	if a.BloodGroupName != "A+" || a.TotalUnits != 9 || len(a.Components) != 2 {
		t.Fatalf("A+ summary %+v", a)
	}
	if a.Components[0].Component != models.ComponentPlasma || a.Components[0].UnitsAvailable != 7 {
		t.Errorf("plasma %+v", a.Components[0])
	}
	if !a.Components[0].LastUpdated.Equal(*ts("2024-03-02T10:00:00Z")) {
		t.Errorf("last updated should be the latest, got %v", a.Components[0].LastUpdated)
	}
	if got[1].BloodGroupName != "O-" || got[1].TotalUnits != 1 {
		t.Errorf("O- summary %+v", got[1])
	}
}

func TestGroupByBloodGroupEmpty(t *testing.T) {
	got := GroupByBloodGroup(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
	raw, _ := json.Marshal(got)
	if string(raw) != "[]" {
		t.Errorf("marshals to %s", raw)
	}
}

func TestGroupByCentre(t *testing.T) {
	rows := []SummaryRow{
		{CentreID: "C1", BloodGroupID: 1, BloodGroupName: "A+", Component: models.ComponentRBC, UnitsAvailable: 2},
		{CentreID: "C1", BloodGroupID: 1, BloodGroupName: "A+", Component: models.ComponentPlatelets, UnitsAvailable: 1},
		{CentreID: "C2", BloodGroupID: 3, BloodGroupName: "B+", Component: models.ComponentRBC, UnitsAvailable: 5},
		{CentreID: "C2", BloodGroupID: 1, BloodGroupName: "A+", Component: models.ComponentRBC, UnitsAvailable: 0},
	}

	got := GroupByCentre(rows)
	if len(got) != 2 || got[0].CentreID != "C1" || got[1].CentreID != "C2" {
		t.Fatalf("centres %+v", got)
	}
	if got[0].TotalUnits != 3 || len(got[0].BloodGroups) != 1 || len(got[0].BloodGroups[0].Components) != 2 {
		t.Errorf("C1 %+v", got[0])
	}
	if got[1].TotalUnits != 5 || len(got[1].BloodGroups) != 2 {
		t.Errorf("C2 %+v", got[1])
	}

	// Every counter row is still accounted for.
	sum := 0
	for _, c := range got {
		sum += c.TotalUnits
	}
	if sum != 8 {
		t.Errorf("total units %d, want 8", sum)
	}
}

var exportFixture = []Row{
	{InventoryID: 1, CentreID: "C1", BloodGroupID: 3, BloodGroupName: "B+", Component: models.ComponentRBC, UnitsAvailable: 4, LastUpdated: ts("2024-03-01T10:00:00Z")},
	{InventoryID: 2, CentreID: "C1", BloodGroupID: 4, BloodGroupName: `AB, "rare"`, Component: models.ComponentPlasma, UnitsAvailable: 0},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, exportFixture); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0][0] != "inventory_id" || records[0][6] != "last_updated" {
		t.Errorf("header %v", records[0])
	}
	if records[1][5] != "4" || records[1][6] != "2024-03-01T10:00:00Z" {
		t.Errorf("row 1 %v", records[1])
	}
	if records[2][3] != `AB, "rare"` || records[2][6] != "" {
		t.Errorf("row 2 %v", records[2])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, exportFixture); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][4] != "component" || rows[1][4] != "RBC" || rows[2][3] != `AB, "rare"` {
		t.Errorf("rows %v", rows)
	}
	if rows[1][5] != "4" {
		t.Errorf("units cell %q", rows[1][5])
	}
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("X", -3*3600))
	if got := ExportFilename("all", now, "csv"); got != "inventory_export_all_2024-03-02.csv" {
		t.Errorf("got %s", got)
	}
	if got := ExportFilename("C1", now, "xlsx"); got != "inventory_export_C1_2024-03-02.xlsx" {
		t.Errorf("got %s", got)
	}
}

func TestParseDigits(t *testing.T) {
	for _, s := range []string{"", "-1", "+1", "1e3", " 1", "abc", "12a"} {
		if _, err := parseDigits(s); err == nil {
			t.Errorf("%q accepted", s)
		}
	}
	if n, err := parseDigits("0042"); err != nil || n != 42 {
		t.Errorf("0042 -> %d, %v", n, err)
	}
}

func TestFilterFromQuery(t *testing.T) {
	home := "C1"
	tests := []struct {
		name   string
		role   models.UserRole
		centre *string
		query  string
		want   Filter
		status int
	}{
		{"admin keeps filter", models.RoleAdmin, nil, "?centre_id=C9&component=plasma&blood_group_id=3", Filter{CentreID: "C9", BloodGroupID: 3, Component: models.ComponentPlasma}, 200},
		{"admin no filter", models.RoleSuperAdmin, nil, "", Filter{}, 200},
		{"lab staff forced home", models.RoleLabStaff, &home, "?centre_id=C9", Filter{CentreID: "C1"}, 200},
		{"organizer forced home", models.RoleOrganizer, &home, "", Filter{CentreID: "C1"}, 200},
		{"bad component", models.RoleAdmin, nil, "?component=Cryo", Filter{}, 400},
		{"bad blood group", models.RoleAdmin, nil, "?blood_group_id=x", Filter{}, 400},
		{"centre-bound without centre", models.RoleLabStaff, nil, "", Filter{}, 403},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Filter
			app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(zap.NewNop())})
			app.Get("/", func(c *fiber.Ctx) error {
				c.Locals(auth.CtxUserRoleKey, tt.role)
				c.Locals(auth.CtxCentreIDKey, tt.centre)
				actor, err := auth.ActorFromCtx(c)
				if err != nil {
					return err
				}
				got, err = filterFromQuery(c, actor)
				if err != nil {
					return err
				}
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			if err != nil {
				t.Fatal(err)
			}
			io.Copy(io.Discard, resp.Body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status == 200 && got != tt.want {
				t.Fatalf("filter %+v, want %+v", got, tt.want)
			}
		})
	}
}

type mapCache struct {
	data   map[string][]byte
	getErr error
	sets   int
}

func (m *mapCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	if m.getErr != nil {
		return false, m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *mapCache) SetJSON(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.sets++
	return nil
}

func (m *mapCache) DeletePrefix(context.Context, string) error { return nil }

func TestCachedComputesOnceAndServesHits(t *testing.T) {
	store := &mapCache{data: map[string][]byte{}}
	calls := 0
	compute := func() ([]CentreSummary, error) {
		calls++
		return []CentreSummary{{CentreID: "C1", TotalUnits: 3}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := cached(context.Background(), store, zap.NewNop(), "inventory:global", compute)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].TotalUnits != 3 {
			t.Fatalf("got %+v", got)
		}
	}
	if calls != 1 || store.sets != 1 {
		t.Fatalf("compute called %d times, %d sets", calls, store.sets)
	}
}

func TestCachedFallsBackOnCacheError(t *testing.T) {
	store := &mapCache{data: map[string][]byte{}, getErr: errors.New("redis down")}
	calls := 0
	got, err := cached(context.Background(), store, zap.NewNop(), "k", func() (int, error) {
		calls++
		return 5, nil
	})
	if err != nil || got != 5 || calls != 1 {
		t.Fatalf("got %d, %v after %d calls", got, err, calls)
	}
}

func TestCachedPropagatesComputeError(t *testing.T) {
	store := &mapCache{data: map[string][]byte{}}
	_, err := cached(context.Background(), store, zap.NewNop(), "k", func() (int, error) {
		return 0, errors.New("db down")
	})
	if err == nil || store.sets != 0 {
		t.Fatalf("err %v sets %d", err, store.sets)
	}
}
