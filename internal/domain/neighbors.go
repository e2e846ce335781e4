package domain

import "strings"

// NeighborCell is one entry of the modem's neighbor cell report. Field types
// follow scalar coercion, so numeric readings decode as numbers and anything
// else stays a string.
type NeighborCell struct {
	ID   any `json:"id"`
	RSRP any `json:"rsrp"`
	RSRQ any `json:"rsrq"`
	Freq any `json:"freq"`
	RSSI any `json:"rssi"`
}

// ParseNeighborCells decodes the ngbr_cell_info field, a semicolon-separated
// list of "freq,pci,rsrq,rsrp,rssi" entries. Malformed entries are skipped;
// entries with extra fields keep only the first five. Empty input yields an
// empty list.
func ParseNeighborCells(raw any) []NeighborCell {
	value, ok := raw.(string)
	if !ok || value == "" {
		return nil
	}
	cells := make([]NeighborCell, 0, 4)
	for _, entry := range strings.Split(value, ";") {
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ",")
		if len(parts) < 5 {
			continue
		}
		cells = append(cells, NeighborCell{
			ID:   CoerceValue(parts[1]),
			RSRP: CoerceValue(parts[3]),
			RSRQ: CoerceValue(parts[2]),
			Freq: CoerceValue(parts[0]),
			RSSI: CoerceValue(parts[4]),
		})
	}
	return cells
}
