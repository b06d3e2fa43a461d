package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category selects which payload a CarData carries.
type Category string

const (
	CategoryFuel       Category = "fuel"
	CategoryInsurance  Category = "insurance"
	CategoryInspection Category = "inspection"

	dateLayout = "2006-01-02"
)

var (
	ErrUnknownCategory = errors.New("unknown car data category")
	ErrInvalidCarData  = errors.New("invalid car data")
)

type Fuel struct {
	Liters        float64 `json:"liters"`
	PricePerLiter float64 `json:"pricePerLiter"`
	Odometer      int     `json:"odometer,omitempty"`
	Station       string  `json:"station,omitempty"`
}

type Insurance struct {
	Provider     string  `json:"provider"`
	PolicyNumber string  `json:"policyNumber,omitempty"`
	ValidFrom    string  `json:"validFrom"`
	ValidUntil   string  `json:"validUntil"`
	Premium      float64 `json:"premium,omitempty"`
}

type Inspection struct {
	Date       string `json:"date"`
	ValidUntil string `json:"validUntil,omitempty"`
	Passed     bool   `json:"passed"`
	Notes      string `json:"notes,omitempty"`
}

// CarData is per-car auxiliary data. Exactly one payload is set and it
// matches Category; values are only built through the New* constructors or
// CarDataFromRecord, which validate.
type CarData struct {
	ID       string
	CarID    string
	Category Category

	fuel       *Fuel
	insurance  *Insurance
	inspection *Inspection
}

func NewFuelData(carID string, f Fuel) (CarData, error) {
	if err := requireCar(carID); err != nil {
		return CarData{}, err
	}
	if f.Liters <= 0 {
		return CarData{}, fmt.Errorf("%w: liters must be positive", ErrInvalidCarData)
	}
	if f.PricePerLiter < 0 || f.Odometer < 0 {
		return CarData{}, fmt.Errorf("%w: negative price or odometer", ErrInvalidCarData)
	}
	return CarData{CarID: carID, Category: CategoryFuel, fuel: &f}, nil
}

func NewInsuranceData(carID string, in Insurance) (CarData, error) {
	if err := requireCar(carID); err != nil {
		return CarData{}, err
	}
	if strings.TrimSpace(in.Provider) == "" {
		return CarData{}, fmt.Errorf("%w: provider is required", ErrInvalidCarData)
	}
	from, err := parseDate("validFrom", in.ValidFrom)
	if err != nil {
		return CarData{}, err
	}
	until, err := parseDate("validUntil", in.ValidUntil)
	if err != nil {
		return CarData{}, err
	}
	if !until.After(from) {
		return CarData{}, fmt.Errorf("%w: validUntil must be after validFrom", ErrInvalidCarData)
	}
	return CarData{CarID: carID, Category: CategoryInsurance, insurance: &in}, nil
}

func NewInspectionData(carID string, in Inspection) (CarData, error) {
	if err := requireCar(carID); err != nil {
		return CarData{}, err
	}
	date, err := parseDate("date", in.Date)
	if err != nil {
		return CarData{}, err
	}
	if in.ValidUntil != "" {
		until, err := parseDate("validUntil", in.ValidUntil)
		if err != nil {
			return CarData{}, err
		}
		if until.Before(date) {
			return CarData{}, fmt.Errorf("%w: validUntil before inspection date", ErrInvalidCarData)
		}
	}
	return CarData{CarID: carID, Category: CategoryInspection, inspection: &in}, nil
}

func (d CarData) Fuel() (Fuel, bool) {
	if d.fuel == nil {
		return Fuel{}, false
	}
	return *d.fuel, true
}

func (d CarData) Insurance() (Insurance, bool) {
	if d.insurance == nil {
		return Insurance{}, false
	}
	return *d.insurance, true
}

func (d CarData) Inspection() (Inspection, bool) {
	if d.inspection == nil {
		return Inspection{}, false
	}
	return *d.inspection, true
}

func (d CarData) payload() any {
	switch d.Category {
	case CategoryFuel:
		return d.fuel
	case CategoryInsurance:
		return d.insurance
	case CategoryInspection:
		return d.inspection
	default:
		return nil
	}
}

// ToRecord renders the value as a car_data record:
// {id?, carId, category, details{...}}.
func (d CarData) ToRecord() (Record, error) {
	p := d.payload()
	if p == nil {
		return nil, ErrUnknownCategory
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var details map[string]any
	if err := json.Unmarshal(b, &details); err != nil {
		return nil, err
	}
	rec := Record{"carId": d.CarID, "category": string(d.Category), "details": details}
	if d.ID != "" {
		rec[FieldID] = d.ID
	}
	return rec, nil
}

// CarDataFromRecord decodes and validates a car_data record.
func CarDataFromRecord(r Record) (CarData, error) {
	carID := Str(r["carId"])
	category, _ := r["category"].(string)

	b, err := json.Marshal(r["details"])
	if err != nil {
		return CarData{}, err
	}

	var d CarData
	switch Category(category) {
	case CategoryFuel:
		var v Fuel
		if err := json.Unmarshal(b, &v); err != nil {
			return CarData{}, fmt.Errorf("%w: %v", ErrInvalidCarData, err)
		}
		d, err = NewFuelData(carID, v)
	case CategoryInsurance:
		var v Insurance
		if err := json.Unmarshal(b, &v); err != nil {
			return CarData{}, fmt.Errorf("%w: %v", ErrInvalidCarData, err)
		}
		d, err = NewInsuranceData(carID, v)
	case CategoryInspection:
		var v Inspection
		if err := json.Unmarshal(b, &v); err != nil {
			return CarData{}, fmt.Errorf("%w: %v", ErrInvalidCarData, err)
		}
		d, err = NewInspectionData(carID, v)
	default:
		return CarData{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if err != nil {
		return CarData{}, err
	}
	d.ID = r.ID()
	return d, nil
}

func requireCar(carID string) error {
	if strings.TrimSpace(carID) == "" {
		return fmt.Errorf("%w: carId is required", ErrInvalidCarData)
	}
	return nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidCarData, field)
	}
	return t, nil
}
