package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/services"
)

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// FormatDistance renders metres below 1 km and kilometres above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

// FormatLocation prints "lat, lng" or "unset" for a volunteer who never
// shared a position.
func FormatLocation(p geo.Point) string {
	if p.IsOrigin() {
		return "unset"
	}
	return fmt.Sprintf("%.4f, %.4f", p.Latitude, p.Longitude)
}

func candidateTable(w io.Writer, candidates []services.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, "No volunteers found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEMAIL\tPHONE\tLOCATION\tDISTANCE\tSKILLS\tVERIFIED")
	for _, c := range candidates {
		skills := "-"
		verified := false
		if profile := c.Volunteer.VolunteerProfile; profile != nil {
			if len(profile.Skills) > 0 {
				skills = strings.Join(profile.Skills, ", ")
			}
			verified = profile.Verified
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%v\n",
			c.Volunteer.Name, c.Volunteer.Email, c.Volunteer.Phone,
			FormatLocation(c.Volunteer.Location), FormatDistance(c.DistanceMeters), skills, verified)
	}
	tw.Flush()
}
