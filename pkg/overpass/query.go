package overpass

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is a radius-around-point search for nodes of one amenity category.
type Query struct {
	Category     string
	RadiusMeters float64
	Lat          float64
	Lon          float64
}

var categoryReplacer = strings.NewReplacer(`"`, "", `\`, "")

// NormalizeCategory lower-cases and trims a category and strips characters
// that would terminate the quoted tag value in Overpass QL.
func NormalizeCategory(category string) string {
	return categoryReplacer.Replace(strings.ToLower(strings.TrimSpace(category)))
}

// String renders the query as Overpass QL.
func (q Query) String() string {
	return fmt.Sprintf(`[out:json];node["amenity"="%s"](around:%s,%s,%s);out;`,
		NormalizeCategory(q.Category),
		formatFloat(q.RadiusMeters),
		formatFloat(q.Lat),
		formatFloat(q.Lon),
	)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
