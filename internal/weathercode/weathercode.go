// Package weathercode maps WMO weather codes returned by Open-Meteo to a
// display label and icon.
package weathercode

// Entry is the display form of one weather code.
type Entry struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// Unknown is returned for any code outside the table.
var Unknown = Entry{Label: "Unknown", Icon: "❔"}

var table = map[int]Entry{
	0:  {"Cerah", "☀️"},
	1:  {"Cerah berawan", "🌤️"},
	2:  {"Berawan sebagian", "⛅"},
	3:  {"Berawan", "☁️"},
	45: {"Berkabut", "🌫️"},
	48: {"Berkabut tebal", "🌫️"},
	51: {"Gerimis", "🌦️"},
	53: {"Gerimis ringan", "🌦️"},
	55: {"Gerimis lebat", "🌧️"},
	61: {"Hujan", "🌧️"},
	63: {"Hujan sedang", "🌧️"},
	65: {"Hujan lebat", "🌧️"},
	71: {"Salju", "❄️"},
	73: {"Salju sedang", "❄️"},
	75: {"Salju lebat", "❄️"},
	80: {"Hujan ringan", "🌦️"},
	81: {"Hujan sedang", "🌧️"},
	82: {"Hujan lebat", "🌧️"},
	95: {"Badai", "⛈️"},
}

// Lookup returns the entry for code, or Unknown. Exact match only.
func Lookup(code int) Entry {
	if e, ok := table[code]; ok {
		return e
	}
	return Unknown
}

// Known reports whether code has its own entry.
func Known(code int) bool {
	_, ok := table[code]
	return ok
}

// Codes returns every code in the table.
func Codes() []int {
	out := make([]int, 0, len(table))
	for c := range table {
		out = append(out, c)
	}
	return out
}

// String is "<icon> <label>", the form shown in the condition slot.
func (e Entry) String() string {
	return e.Icon + " " + e.Label
}
