package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// SignalCategory is the type of issue a citizen reports
type SignalCategory string

const (
	CategoryWasteContainer  SignalCategory = "waste-container"
	CategoryStreetDamage    SignalCategory = "street-damage"
	CategoryLighting        SignalCategory = "lighting"
	CategoryGreenSpaces     SignalCategory = "green-spaces"
	CategoryParking         SignalCategory = "parking"
	CategoryPublicTransport SignalCategory = "public-transport"
	CategoryOther           SignalCategory = "other"
)

// Valid reports whether c is a known category
func (c SignalCategory) Valid() bool {
	switch c {
	case CategoryWasteContainer, CategoryStreetDamage, CategoryLighting, CategoryGreenSpaces,
		CategoryParking, CategoryPublicTransport, CategoryOther:
		return true
	}
	return false
}

// SignalStatus is the lifecycle state of a signal
type SignalStatus string

const (
	SignalPending    SignalStatus = "pending"
	SignalInProgress SignalStatus = "in-progress"
	SignalResolved   SignalStatus = "resolved"
	SignalRejected   SignalStatus = "rejected"
)

// TerminalSignalStatuses are the statuses a signal never leaves
var TerminalSignalStatuses = []SignalStatus{SignalResolved, SignalRejected}

func (s SignalStatus) Valid() bool {
	switch s {
	case SignalPending, SignalInProgress, SignalResolved, SignalRejected:
		return true
	}
	return false
}

func (s SignalStatus) IsTerminal() bool {
	return s == SignalResolved || s == SignalRejected
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Keeping the same status is always allowed for open signals.
func (s SignalStatus) CanTransitionTo(next SignalStatus) bool {
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	switch s {
	case SignalPending:
		return true
	case SignalInProgress:
		return next != SignalPending
	}
	return false
}

// ObjectType is the kind of physical city object a signal refers to
type ObjectType string

const (
	ObjectWasteContainer ObjectType = "waste-container"
	ObjectStreet         ObjectType = "street"
	ObjectPark           ObjectType = "park"
	ObjectBuilding       ObjectType = "building"
	ObjectOther          ObjectType = "other"
)

func (t ObjectType) Valid() bool {
	switch t {
	case ObjectWasteContainer, ObjectStreet, ObjectPark, ObjectBuilding, ObjectOther:
		return true
	}
	return false
}

// ContainerCondition is a single condition flag of a waste container
type ContainerCondition string

const (
	ConditionFull        ContainerCondition = "full"
	ConditionDirty       ContainerCondition = "dirty"
	ConditionDamaged     ContainerCondition = "damaged"
	ConditionLeaves      ContainerCondition = "leaves"
	ConditionMaintenance ContainerCondition = "maintenance"
	ConditionBagged      ContainerCondition = "bagged"
	ConditionFallen      ContainerCondition = "fallen"
	ConditionBulkyWaste  ContainerCondition = "bulkyWaste"
)

func (c ContainerCondition) Valid() bool {
	switch c {
	case ConditionFull, ConditionDirty, ConditionDamaged, ConditionLeaves,
		ConditionMaintenance, ConditionBagged, ConditionFallen, ConditionBulkyWaste:
		return true
	}
	return false
}

// ContainerStatus is the operational status of a waste container
type ContainerStatus string

const (
	ContainerActive      ContainerStatus = "active"
	ContainerFull        ContainerStatus = "full"
	ContainerMaintenance ContainerStatus = "maintenance"
	ContainerInactive    ContainerStatus = "inactive"
)

// ContainerSource records where a container record came from
type ContainerSource string

const (
	SourceCommunity  ContainerSource = "community"
	SourceOfficial   ContainerSource = "official"
	SourceThirdParty ContainerSource = "third_party"
)

// WasteType is the kind of waste a container accepts
type WasteType string

const (
	WasteGeneral     WasteType = "general"
	WasteRecyclables WasteType = "recyclables"
	WasteOrganic     WasteType = "organic"
	WasteGlass       WasteType = "glass"
	WastePaper       WasteType = "paper"
	WastePlastic     WasteType = "plastic"
	WasteMetal       WasteType = "metal"
	WasteTrashCan    WasteType = "trashCan"
)

// CapacitySize is the relative size class of a container
type CapacitySize string

const (
	CapacityTiny       CapacitySize = "tiny"
	CapacitySmall      CapacitySize = "small"
	CapacityStandard   CapacitySize = "standard"
	CapacityBig        CapacitySize = "big"
	CapacityIndustrial CapacitySize = "industrial"
)

// CityObject references the physical object a signal is about.
// ReferenceID holds the object's public identifier, not its internal id.
type CityObject struct {
	Type        ObjectType `json:"type,omitempty"`
	ReferenceID string     `json:"referenceId,omitempty"`
	Name        string     `json:"name,omitempty"`
}

// Signal represents a citizen report in the database.
// Location is encoded as [longitude, latitude].
type Signal struct {
	ID               uuid.UUID            `json:"id"`
	Title            string               `json:"title"`
	Description      string               `json:"description,omitempty"`
	Category         SignalCategory       `json:"category"`
	CityObject       *CityObject          `json:"cityObject,omitempty"`
	ContainerState   []ContainerCondition `json:"containerState,omitempty"`
	Location         *orb.Point           `json:"location,omitempty"`
	Address          string               `json:"address,omitempty"`
	Status           SignalStatus         `json:"status"`
	AdminNotes       string               `json:"adminNotes,omitempty"`
	ReporterUniqueID string               `json:"reporterUniqueId,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// ReferenceID returns the referenced object's public identifier, if any
func (s *Signal) ReferenceID() string {
	if s.CityObject == nil {
		return ""
	}
	return s.CityObject.ReferenceID
}

// ObjectType returns the referenced object's type, if any
func (s *Signal) ObjectType() ObjectType {
	if s.CityObject == nil {
		return ""
	}
	return s.CityObject.Type
}

// WasteContainer represents a physical container in the database
type WasteContainer struct {
	ID              uuid.UUID            `json:"id"`
	LegacyID        string               `json:"legacyId,omitempty"`
	PublicNumber    string               `json:"publicNumber"`
	Location        orb.Point            `json:"location"`
	Address         string               `json:"address,omitempty"`
	CapacityVolume  float64              `json:"capacityVolume"`
	CapacitySize    CapacitySize         `json:"capacitySize"`
	BinCount        int                  `json:"binCount"`
	ServiceInterval string               `json:"serviceInterval,omitempty"`
	ServicedBy      string               `json:"servicedBy,omitempty"`
	WasteType       WasteType            `json:"wasteType"`
	Source          ContainerSource      `json:"source"`
	Status          ContainerStatus      `json:"status"`
	State           []ContainerCondition `json:"state"`
	Notes           string               `json:"notes,omitempty"`
	LastCleaned     *time.Time           `json:"lastCleaned"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// ContainerPatch lists container fields to change; nil fields are left untouched
type ContainerPatch struct {
	Status      *ContainerStatus
	State       *[]ContainerCondition
	Notes       *string
	LastCleaned *time.Time
}

// IsEmpty reports whether the patch changes nothing
func (p ContainerPatch) IsEmpty() bool {
	return p.Status == nil && p.State == nil && p.Notes == nil && p.LastCleaned == nil
}

// SignalPatch lists signal fields to change; nil fields are left untouched
type SignalPatch struct {
	Title          *string
	Description    *string
	Address        *string
	Status         *SignalStatus
	AdminNotes     *string
	ContainerState *[]ContainerCondition
}

func (p SignalPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Address == nil &&
		p.Status == nil && p.AdminNotes == nil && p.ContainerState == nil
}
