package items

import (
	"errors"
	"strings"
)

func (s *Service) validate(it Item) error {
	if strings.TrimSpace(it.Code) == "" {
		return errors.New("item code is required")
	}
	if strings.TrimSpace(it.Name) == "" {
		return errors.New("item name is required")
	}
	if it.UomID <= 0 {
		return errors.New("unit of measure is required")
	}
	if !it.CostMethod.Valid() {
		return errors.New("unknown cost method")
	}
	if it.TrackLot && it.TrackSerial {
		return errors.New("item cannot be both lot and serial tracked")
	}
	return nil
}
