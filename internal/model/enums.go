package model

type Platform string

const (
	PlatformAirbnb Platform = "airbnb"
)

type IdentitySource string

const (
	IdentitySourceManaged IdentitySource = "managed"
	IdentitySourceSession IdentitySource = "session"
	IdentitySourceLegacy  IdentitySource = "legacy"
)

type ReservationStatus string

const (
	ReservationStatusNew       ReservationStatus = "new"
	ReservationStatusModified  ReservationStatus = "modified"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

type InventoryChangeKind string

const (
	InventoryChangeRate         InventoryChangeKind = "rate"
	InventoryChangeAvailability InventoryChangeKind = "availability"
)
