package domain

import (
	"slices"
	"strings"
)

// UnitType classifies an organizational unit.
type UnitType string

// UnitType values.
const (
	UnitTypeRoot             UnitType = "ROOT"
	UnitTypeIntermediate     UnitType = "INTERMEDIATE"
	UnitTypeOperational      UnitType = "OPERATIONAL"
	UnitTypeInteroperational UnitType = "INTEROPERATIONAL"
)

var validUnitTypes = []UnitType{
	UnitTypeRoot,
	UnitTypeIntermediate,
	UnitTypeOperational,
	UnitTypeInteroperational,
}

// Person identifies someone who can receive notifications for a unit.
type Person struct {
	ID    string
	Name  string
	Email string
}

// IsZero reports whether no person is set.
func (p Person) IsZero() bool {
	return strings.TrimSpace(p.ID) == "" && strings.TrimSpace(p.Email) == ""
}

// Unit is a node of the organizational hierarchy. SuperiorID is empty for top-level units.
type Unit struct {
	ID          string
	Code        string
	Name        string
	Type        UnitType
	SuperiorID  string
	Responsible Person
	Substitute  Person
}

// UnitInput holds input values for NewUnit.
type UnitInput struct {
	ID          string
	Code        string
	Name        string
	Type        UnitType
	SuperiorID  string
	Responsible Person
	Substitute  Person
}

// NewUnit validates and normalizes a unit.
func NewUnit(in UnitInput) (Unit, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" {
		return Unit{}, ErrInvalidID
	}
	if in.Code == "" {
		return Unit{}, ErrInvalidCode
	}
	if in.Name == "" {
		in.Name = in.Code
	}
	unitType := NormalizeUnitType(in.Type)
	if !slices.Contains(validUnitTypes, unitType) {
		return Unit{}, ErrInvalidUnitType
	}
	return Unit{
		ID:          in.ID,
		Code:        in.Code,
		Name:        in.Name,
		Type:        unitType,
		SuperiorID:  strings.TrimSpace(in.SuperiorID),
		Responsible: normalizePerson(in.Responsible),
		Substitute:  normalizePerson(in.Substitute),
	}, nil
}

// NormalizeUnitType canonicalizes a unit type value.
func NormalizeUnitType(t UnitType) UnitType {
	return UnitType(strings.ToUpper(strings.TrimSpace(string(t))))
}

// Label renders the unit as "CODE - Name" for messages.
func (u Unit) Label() string {
	if u.Name == "" || u.Name == u.Code {
		return u.Code
	}
	return u.Code + " - " + u.Name
}

func normalizePerson(p Person) Person {
	return Person{
		ID:    strings.TrimSpace(p.ID),
		Name:  strings.TrimSpace(p.Name),
		Email: strings.TrimSpace(p.Email),
	}
}
