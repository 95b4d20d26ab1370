package aisverify

// Grid references for display, using https://github.com/tzneal/coordconv

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"
)

var errNoPosition = errors.New("position not available")

// MGRS converts a position to a Military Grid Reference System string.
// precision is 1 (10 km) to 5 (1 m).
func MGRS(lat float64, lon float64, precision int) (string, error) {
	if lat == Unknown || lon == Unknown {
		return "", errNoPosition
	}

	var latlng = s2.LatLng{
		Lat: s1.Angle(lat) * s1.Degree,
		Lng: s1.Angle(lon) * s1.Degree,
	}

	var coord, err = coordconv.DefaultMGRSConverter.ConvertFromGeodetic(latlng, precision)
	if err != nil {
		return "", fmt.Errorf("MGRS conversion of %.5f %.5f: %w", lat, lon, err)
	}

	return fmt.Sprint(coord), nil
}
