package contracts

import "time"

// ItemID identifies a tracked commodity (vegetable/crop code).
type ItemID int

// Weather holds the merged daily weather attributes for an observation.
// Fields are pointers because the upstream merge can leave gaps; the feature
// builder forward/back-fills them.
type Weather struct {
	Pressure    *float64 `json:"pressure"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	WindSpeed   *float64 `json:"wind_speed"`
	Precip      *float64 `json:"precip"`
	Typhoon     *float64 `json:"typhoon"`
}

// Observation is one (item, date) row of the merged history: realized average
// price plus weather. Series are always handled in ascending date order.
type Observation struct {
	ItemID  ItemID    `json:"item_id"`
	Date    time.Time `json:"date"`
	Price   float64   `json:"price"`
	Weather Weather   `json:"weather"`
}
