package odata

import (
	"sync/atomic"
)

// EnableGeospatial enables the geo.distance, geo.intersects and geo.length
// functions. Without it Distance, Intersects and GeoLength fail with
// ErrUnsupportedFunction, since not every service implements them.
//
// Example:
//
//	client := odata.NewClient(odata.Settings{})
//	client.EnableGeospatial()
//	filter, err := client.Format(ctx, "Stores",
//	    odata.Lt(odata.Distance(odata.Ref("Location"), odata.Lit(here)), odata.Lit(10)))
//	// geo.distance(Location,geography'SRID=4326;POINT(4.9 52.37)') lt 10
func (c *Client) EnableGeospatial() {
	if atomic.SwapInt32(&c.geospatialEnabled, 1) == 0 {
		c.log().Info("Geospatial functions enabled")
	}
}

// DisableGeospatial turns the geo.* functions off again.
func (c *Client) DisableGeospatial() {
	atomic.StoreInt32(&c.geospatialEnabled, 0)
}

// IsGeospatialEnabled returns whether geospatial functions are enabled for this client.
func (c *Client) IsGeospatialEnabled() bool {
	return atomic.LoadInt32(&c.geospatialEnabled) == 1
}
