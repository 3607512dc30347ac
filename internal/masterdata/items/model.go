package items

import "time"

// CostMethod selects how outbound consumption is costed for an item.
type CostMethod string

const (
	// CostMethodFIFO walks inbound layers oldest-first.
	CostMethodFIFO CostMethod = "FIFO"
	// CostMethodWeightedAverage uses the quantity-weighted average of inbound costs.
	CostMethodWeightedAverage CostMethod = "WAVG"
)

// Valid reports whether the cost method is a known variant.
func (m CostMethod) Valid() bool {
	switch m {
	case CostMethodFIFO, CostMethodWeightedAverage:
		return true
	}
	return false
}

// Item is one stock-keeping unit. TrackLot and TrackSerial become immutable
// once lots or serials exist for the item.
type Item struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	UomID       int64      `json:"uom_id"`
	CategoryID  int64      `json:"category_id"`
	TrackLot    bool       `json:"track_lot"`
	TrackSerial bool       `json:"track_serial"`
	CostMethod  CostMethod `json:"cost_method"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
