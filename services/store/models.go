package store

import "time"

// Place is one end of a lane: parsed city/state/zip plus resolved
// coordinates. Zero coordinates mean the place could not be resolved.
type Place struct {
	City  string  `json:"city"`
	State string  `json:"state"`
	Zip   string  `json:"zip"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

func (p Place) HasGeo() bool {
	return p.Lat != 0 || p.Lng != 0
}

// Load is a posting scraped off the board. SourceID is the content
// fingerprint; the unique index makes every sync an insert-or-update,
// never a duplicate.
type Load struct {
	ID       uint   `gorm:"primarykey" json:"-"`
	SourceID string `gorm:"uniqueIndex;size:40" json:"sourceId"`

	Origin      Place `gorm:"embedded;embeddedPrefix:origin_" json:"origin"`
	Destination Place `gorm:"embedded;embeddedPrefix:destination_" json:"destination"`

	Miles     int    `json:"miles"`
	TruckType string `json:"truckType"`
	Weight    int    `json:"weight"`
	Pieces    int    `json:"pieces"`

	// free-text as rendered by the portal, deliberately not normalized
	PickupDate       string `json:"pickupDate"`
	DeliveryDateTime string `json:"deliveryDateTime"`

	BrokerName  string `json:"brokerName"`
	BrokerEmail string `json:"brokerEmail"`
	BrokerNotes string `json:"brokerNotes"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Alert is a user's saved geo-radius subscription. Coordinates are
// resolved at creation time by the alert-management API; this core only
// reads them.
type Alert struct {
	ID        uint   `gorm:"primarykey"`
	UserEmail string `gorm:"index"`

	OriginText   string
	OriginLat    float64
	OriginLng    float64
	OriginRadius float64 // miles

	DestinationText   string
	DestinationLat    float64
	DestinationLng    float64
	DestinationRadius float64 // miles

	IsActive bool `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Alert) HasOriginGeo() bool {
	return a.OriginLat != 0 || a.OriginLng != 0
}

func (a Alert) HasDestinationGeo() bool {
	return a.DestinationLat != 0 || a.DestinationLng != 0
}

// ZipCode is one row of the imported SimpleMaps dataset, used to
// resolve scraped cities to coordinates without an external geocoder.
type ZipCode struct {
	ID         uint   `gorm:"primarykey"`
	Zip        string `gorm:"uniqueIndex"`
	Lat        float64
	Lng        float64
	City       string `gorm:"index:idx_zip_city_state"`
	StateID    string `gorm:"index:idx_zip_city_state"`
	StateName  string
	CountyName string
	Population int
	Density    float64
}
