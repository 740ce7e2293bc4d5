package geo

import "strings"

// FormatLocation renders "City, Region, Country", skipping empty parts.
func FormatLocation(data *Data) string {
	if data == nil || data.Status != "success" {
		return "Unknown"
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{data.City, data.RegionName, data.Country} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, ", ")
}
