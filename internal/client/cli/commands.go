package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/carledger/internal/client/gateway"
	"github.com/dmitrijs2005/carledger/internal/client/migration"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/monitor"
)

// fail reports err to the user and returns it unchanged.
func (a *App) fail(err error) error {
	fmt.Fprintln(a.out, "Error:", err)
	return err
}

func (a *App) gateway(table string) (*gateway.Gateway, error) {
	g, err := a.gateways.Get(table)
	if err != nil {
		return nil, a.fail(err)
	}
	return g, nil
}

func (a *App) Tables(ctx context.Context) error {
	pending, err := a.registry.Pending(ctx)
	if err != nil {
		return a.fail(err)
	}
	for _, spec := range a.registry.Schema() {
		line := spec.Name
		if len(spec.References) > 0 {
			refs := make([]string, 0, len(spec.References))
			for field, parent := range spec.References {
				refs = append(refs, field+"->"+parent)
			}
			sort.Strings(refs)
			line += " (" + strings.Join(refs, ", ") + ")"
		}
		if n := pending[spec.Name]; n > 0 {
			line += fmt.Sprintf(" [%d pending]", n)
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func (a *App) List(ctx context.Context, table string) error {
	g, err := a.gateway(table)
	if err != nil {
		return err
	}
	recs, err := g.FindByUser(ctx, a.user())
	if err != nil {
		return a.fail(err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No records")
		return nil
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID() < recs[j].ID() })
	for _, r := range recs {
		fmt.Fprintln(a.out, formatRecord(r))
	}
	return nil
}

func (a *App) Get(ctx context.Context, table, id string) error {
	g, err := a.gateway(table)
	if err != nil {
		return err
	}
	rec, err := g.FindByID(ctx, id)
	if err != nil {
		return a.fail(err)
	}
	if rec == nil {
		fmt.Fprintln(a.out, "Record not found")
		return nil
	}
	fmt.Fprintln(a.out, formatRecord(rec))
	return nil
}

func (a *App) Add(ctx context.Context, table string) error {
	g, err := a.gateway(table)
	if err != nil {
		return err
	}
	rec, err := a.readFields()
	if err != nil {
		return a.fail(err)
	}
	created := g.Create(ctx, a.owned(table, rec))
	fmt.Fprintln(a.out, "Created:", formatRecord(created))
	return nil
}

func (a *App) Update(ctx context.Context, table, id string) error {
	g, err := a.gateway(table)
	if err != nil {
		return err
	}
	rec, err := a.readFields()
	if err != nil {
		return a.fail(err)
	}
	updated, err := g.Update(ctx, id, rec)
	if errors.Is(err, gateway.ErrNotFoundLocally) {
		fmt.Fprintln(a.out, "Record not found")
		return err
	}
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, "Updated:", formatRecord(updated))
	return nil
}

func (a *App) Delete(ctx context.Context, table, id string) error {
	g, err := a.gateway(table)
	if err != nil {
		return err
	}
	err = g.Delete(ctx, id)
	if errors.Is(err, gateway.ErrNotFoundLocally) {
		fmt.Fprintln(a.out, "Record not found")
		return err
	}
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

// CarData asks for the category and its fields, validates them and stores
// a car_data record for carID.
func (a *App) CarData(ctx context.Context, carID string) error {
	g, err := a.gateway(models.TableCarData)
	if err != nil {
		return err
	}

	category, err := GetSimpleText(a.reader, "Category (fuel, insurance, inspection):", a.out)
	if err != nil {
		return a.fail(err)
	}

	var d models.CarData
	switch models.Category(strings.ToLower(category)) {
	case models.CategoryFuel:
		d, err = a.readFuel(carID)
	case models.CategoryInsurance:
		d, err = a.readInsurance(carID)
	case models.CategoryInspection:
		d, err = a.readInspection(carID)
	default:
		err = fmt.Errorf("%w: %q", models.ErrUnknownCategory, category)
	}
	if err != nil {
		return a.fail(err)
	}

	rec, err := d.ToRecord()
	if err != nil {
		return a.fail(err)
	}
	created := g.Create(ctx, a.owned(models.TableCarData, rec))
	fmt.Fprintln(a.out, "Created:", formatRecord(created))
	return nil
}

func (a *App) readFuel(carID string) (models.CarData, error) {
	var f models.Fuel
	var err error
	if f.Liters, err = getNumber(a.reader, "Liters:", a.out); err != nil {
		return models.CarData{}, err
	}
	if f.PricePerLiter, err = getNumber(a.reader, "Price per liter:", a.out); err != nil {
		return models.CarData{}, err
	}
	odometer, err := getNumber(a.reader, "Odometer (optional):", a.out)
	if err != nil {
		return models.CarData{}, err
	}
	f.Odometer = int(odometer)
	if f.Station, err = GetSimpleText(a.reader, "Station (optional):", a.out); err != nil {
		return models.CarData{}, err
	}
	return models.NewFuelData(carID, f)
}

func (a *App) readInsurance(carID string) (models.CarData, error) {
	var in models.Insurance
	var err error
	if in.Provider, err = GetSimpleText(a.reader, "Provider:", a.out); err != nil {
		return models.CarData{}, err
	}
	if in.PolicyNumber, err = GetSimpleText(a.reader, "Policy number (optional):", a.out); err != nil {
		return models.CarData{}, err
	}
	if in.ValidFrom, err = GetSimpleText(a.reader, "Valid from (YYYY-MM-DD):", a.out); err != nil {
		return models.CarData{}, err
	}
	if in.ValidUntil, err = GetSimpleText(a.reader, "Valid until (YYYY-MM-DD):", a.out); err != nil {
		return models.CarData{}, err
	}
	if in.Premium, err = getNumber(a.reader, "Premium (optional):", a.out); err != nil {
		return models.CarData{}, err
	}
	return models.NewInsuranceData(carID, in)
}

func (a *App) readInspection(carID string) (models.CarData, error) {
	var in models.Inspection
	var err error
	if in.Date, err = GetSimpleText(a.reader, "Date (YYYY-MM-DD):", a.out); err != nil {
		return models.CarData{}, err
	}
	if in.ValidUntil, err = GetSimpleText(a.reader, "Valid until (YYYY-MM-DD, optional):", a.out); err != nil {
		return models.CarData{}, err
	}
	passed, err := GetSimpleText(a.reader, "Passed (y/n):", a.out)
	if err != nil {
		return models.CarData{}, err
	}
	in.Passed = strings.HasPrefix(strings.ToLower(passed), "y")
	if in.Notes, err = GetSimpleText(a.reader, "Notes (optional):", a.out); err != nil {
		return models.CarData{}, err
	}
	return models.NewInspectionData(carID, in)
}

func (a *App) Sync(ctx context.Context) error {
	res, err := a.monitor.ManualSync(ctx)
	if errors.Is(err, monitor.ErrSyncInProgress) {
		fmt.Fprintln(a.out, "Sync already in progress")
		return err
	}
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, syncSummary(res))
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.monitor.Status(ctx)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, formatStatus(st))
	return nil
}

func (a *App) Pending(ctx context.Context) error {
	pending, err := a.registry.Pending(ctx)
	if err != nil {
		return a.fail(err)
	}
	total := 0
	for _, name := range a.registry.Schema().Names() {
		n := pending[name]
		total += n
		fmt.Fprintf(a.out, "%-12s %d\n", name, n)
	}
	fmt.Fprintf(a.out, "%-12s %d\n", "total", total)
	return nil
}

func (a *App) Migrate(ctx context.Context) error {
	res, err := a.migrator.RunOnce(ctx, a.user())
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, migrationSummary(res))
	return nil
}

func (a *App) readFields() (models.Record, error) {
	lines, err := GetFields(a.reader, a.out)
	if err != nil {
		return nil, err
	}
	return models.FieldsFromString(lines)
}

// owned stamps the owner field of table with the session user unless the
// record already carries one.
func (a *App) owned(table string, rec models.Record) models.Record {
	spec, ok := a.registry.Schema().Table(table)
	if !ok || spec.OwnerField == "" {
		return rec
	}
	if _, set := rec[spec.OwnerField]; !set {
		rec[spec.OwnerField] = a.user()
	}
	return rec
}

func syncSummary(res models.SyncResult) string {
	s := fmt.Sprintf("Synced %d, failed %d", res.Synced, res.Errors)
	if res.Deferred > 0 {
		s += fmt.Sprintf(", deferred %d", res.Deferred)
	}
	if res.Dropped > 0 {
		s += fmt.Sprintf(", dropped %d", res.Dropped)
	}
	return s
}

func migrationSummary(res migration.Result) string {
	switch {
	case res.AlreadyDone:
		return "Local data already migrated"
	case !res.Success:
		return fmt.Sprintf("Migration stopped after %d records: %s", res.MigratedCount, res.Error)
	case res.MigratedCount == 0:
		return "Nothing to migrate"
	default:
		return fmt.Sprintf("Migrated %d records (%d queued for sync)", res.MigratedCount, res.Queued)
	}
}
