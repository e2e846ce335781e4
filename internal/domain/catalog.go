package domain

import "sort"

// metricFields maps public metric identifiers to the raw field names the
// modem reports them under. Identifiers are what callers put in request
// topics; fields are what goform_get_cmd_process returns.
var metricFields = map[string]string{
	"lte.rsrp1":  "lte_rsrp_1",
	"lte.rsrp2":  "lte_rsrp_2",
	"lte.rsrp3":  "lte_rsrp_3",
	"lte.rsrp4":  "lte_rsrp_4",
	"lte.sinr1":  "lte_snr_1",
	"lte.sinr2":  "lte_snr_2",
	"lte.sinr3":  "lte_snr_3",
	"lte.sinr4":  "lte_snr_4",
	"lte.rsrq":   "lte_rsrq",
	"lte.rssi":   "lte_rssi",
	"lte.earfcn": "lte_ca_pcell_freq",
	"lte.pci":    "lte_pci",
	"lte.bw":     "lte_ca_pcell_bandwidth",

	"provider":   "network_provider_fullname",
	"cell":       "cell_id",
	"connection": "network_type",
	"bands":      "wan_active_band",
	"wan_ip":     "wan_ipaddr",
	"neighbors":  "ngbr_cell_info",

	"nr5g.rsrp1": "5g_rx0_rsrp",
	"nr5g.rsrp2": "5g_rx1_rsrp",
	"nr5g.sinr":  "Z5g_SINR",
	"nr5g.pci":   "nr5g_pci",
	"nr5g.arfcn": "nr5g_action_channel",

	"temp.a": "pm_sensor_ambient",
	"temp.m": "pm_sensor_mdm",
	"temp.p": "pm_sensor_pa1",
}

// NeighborField is the raw field carrying the semicolon-separated neighbor
// cell list. It needs structured parsing instead of scalar coercion.
const NeighborField = "ngbr_cell_info"

// LTEMetrics are the short keys of the LTE group in reporting order.
var LTEMetrics = []string{
	"rsrp1", "rsrp2", "rsrp3", "rsrp4",
	"sinr1", "sinr2", "sinr3", "sinr4",
	"rsrq", "rssi", "earfcn", "pci", "bw",
}

// NR5GMetrics are the short keys of the NR 5G group in reporting order.
var NR5GMetrics = []string{"rsrp1", "rsrp2", "sinr", "pci", "arfcn"}

// TempMetrics are the short keys of the temperature group in reporting order.
var TempMetrics = []string{"a", "m", "p"}

// SingleMetrics are the ungrouped identifiers included in full snapshots.
var SingleMetrics = []string{"provider", "cell", "connection", "bands", "wan_ip"}

// FieldForMetric resolves a metric identifier to its raw modem field name.
func FieldForMetric(id string) (string, bool) {
	field, ok := metricFields[id]
	return field, ok
}

// QueryFields returns the sorted, de-duplicated set of raw field names for a
// whole-catalog poll. One device round trip with these fields covers every
// metric the bridge can answer.
func QueryFields() []string {
	seen := make(map[string]struct{}, len(metricFields))
	fields := make([]string, 0, len(metricFields))
	for _, field := range metricFields {
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
