package models

import "time"

// RouteSheet is a driver's service record (hoja de ruta) for one trip.
// The PDF rendering is produced elsewhere and stored as opaque bytes.
type RouteSheet struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	OwnerID      string    `json:"owner_id" bson:"ownerId"`
	ServiceDate  string    `json:"service_date" bson:"serviceDate"`
	VehiclePlate string    `json:"vehicle_plate" bson:"vehiclePlate"`
	Origin       string    `json:"origin" bson:"origin"`
	Destination  string    `json:"destination" bson:"destination"`
	Passengers   int       `json:"passengers,omitempty" bson:"passengers,omitempty"`
	Notes        string    `json:"notes,omitempty" bson:"notes,omitempty"`
	HasPDF       bool      `json:"has_pdf" bson:"hasPdf"`
	PDF          []byte    `json:"-" bson:"pdf,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CreateRouteSheetRequest is the body of POST /route-sheets. PDF is base64 in JSON.
type CreateRouteSheetRequest struct {
	ServiceDate  string `json:"service_date" binding:"required"`
	VehiclePlate string `json:"vehicle_plate" binding:"required"`
	Origin       string `json:"origin" binding:"required"`
	Destination  string `json:"destination" binding:"required"`
	Passengers   int    `json:"passengers,omitempty"`
	Notes        string `json:"notes,omitempty"`
	PDF          []byte `json:"pdf,omitempty"`
}
